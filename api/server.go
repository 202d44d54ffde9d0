/*
server.go - HTTP router assembly

PURPOSE:
  Wires handlers into a chi router with logging, panic recovery and
  CORS for the local frontend origins.

SEE ALSO:
  handlers.go - endpoint implementations
  dto.go      - wire types
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP router for the engine API.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
		})

		r.Route("/statement-lines", func(r chi.Router) {
			r.Get("/", h.ListStatementLines)
			r.Delete("/{id}", h.DiscardStatementLine)
		})

		r.Route("/statements", func(r chi.Router) {
			r.Post("/preview", h.PreviewStatement)
			r.Post("/import", h.ImportStatement)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/proposals", h.Proposals)
			r.Post("/reconcile", h.Reconcile)
			r.Post("/unreconcile", h.Unreconcile)
			r.Post("/post", h.PostAndReconcile)
		})
	})

	return r
}
