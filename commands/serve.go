package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finlab/reconcile-engine/api"
	"github.com/finlab/reconcile-engine/config"
	"github.com/finlab/reconcile-engine/logger"
	"github.com/finlab/reconcile-engine/recon"
	"github.com/finlab/reconcile-engine/store/sqlite"
)

func newServeCommand() *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config, \":memory:\" for throwaway)")

	return cmd
}

func runServe(cfg config.Config) error {
	log := logger.New()

	st, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := recon.NewService(st, log)
	handler := api.NewHandler(svc, cfg.Auth.DefaultUser, log)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("db", cfg.Database.Path).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// openStore opens the SQLite store, creating the parent directory for
// file-backed databases.
func openStore(path string) (*sqlite.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	return sqlite.New(path)
}
