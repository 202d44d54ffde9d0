/*
handlers.go - HTTP handlers for the reconciliation engine

ENDPOINTS:
  Accounts:
    GET    /api/accounts                      List accounts
    POST   /api/accounts                      Create account

  Transactions:
    GET    /api/transactions                  List (account_id, status filters)
    POST   /api/transactions                  Create ledger transaction

  Statement lines:
    GET    /api/statement-lines               List (account_id, status filters)
    DELETE /api/statement-lines/{id}          Discard a line (irreversible)

  Statements:
    POST   /api/statements/preview            Parse only + bank cross-check
    POST   /api/statements/import             Parse and persist new lines

  Reconciliation:
    POST   /api/reconciliation/proposals      Match proposals for an account
    POST   /api/reconciliation/reconcile      Pending -> Reconciled
    POST   /api/reconciliation/unreconcile    Reconciled -> Pending
    POST   /api/reconciliation/post           Post transactions + reconcile

ERROR HANDLING:
  JSON body with appropriate status:
  - 400: unreadable statement, malformed input
  - 404: missing line/account/membership
  - 409: invalid status transition
  - 500: store failures
  Batch transition failures carry the count of lines that succeeded
  before the stop; clients re-query and retry the remainder.

IDENTITY:
  The acting user comes from the X-User-ID header, falling back to
  the configured default. Authentication itself is out of scope.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finlab/reconcile-engine/banks"
	"github.com/finlab/reconcile-engine/ofx"
	"github.com/finlab/reconcile-engine/recon"
)

const dateFormat = "2006-01-02"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc         *recon.Service
	defaultUser string
	log         zerolog.Logger
}

// NewHandler creates a Handler around the engine service.
func NewHandler(svc *recon.Service, defaultUser string, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, defaultUser: defaultUser, log: log}
}

// actingUser resolves the user id for audit fields and membership.
func (h *Handler) actingUser(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return h.defaultUser
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Store().ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates an account in the acting user's organization.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Account name is required", nil)
		return
	}

	orgID, err := h.svc.Store().OrganizationForUser(r.Context(), h.actingUser(r))
	if err != nil {
		h.writeDomainError(w, "Failed to resolve organization", err)
		return
	}

	account, err := h.svc.Store().CreateAccount(r.Context(), recon.Account{
		OrganizationID: orgID,
		Name:           req.Name,
		Bank:           req.Bank,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// ListTransactions returns ledger transactions, optionally filtered
// by account_id and status query parameters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f := recon.TransactionFilters{
		AccountID: r.URL.Query().Get("account_id"),
		Status:    recon.TransactionStatus(r.URL.Query().Get("status")),
	}
	txs, err := h.svc.Store().ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction creates a ledger transaction.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must be a non-negative decimal", err)
		return
	}
	date, err := time.ParseInLocation(dateFormat, req.Date, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Date must be YYYY-MM-DD", err)
		return
	}
	kind := recon.TransactionKind(req.Kind)
	switch kind {
	case recon.KindIncome, recon.KindExpense, recon.KindTransfer:
	default:
		writeError(w, http.StatusBadRequest, "Kind must be income, expense or transfer", nil)
		return
	}
	status := recon.TxPending
	if req.Status != "" {
		status = recon.TransactionStatus(req.Status)
		if status != recon.TxPending && status != recon.TxCompleted {
			writeError(w, http.StatusBadRequest, "Status must be pending or completed", nil)
			return
		}
	}

	orgID, err := h.svc.Store().OrganizationForUser(r.Context(), h.actingUser(r))
	if err != nil {
		h.writeDomainError(w, "Failed to resolve organization", err)
		return
	}

	tx, err := h.svc.Store().CreateTransaction(r.Context(), recon.Transaction{
		OrganizationID: orgID,
		AccountID:      req.AccountID,
		Description:    req.Description,
		Amount:         amount,
		Kind:           kind,
		Date:           date,
		Status:         status,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// STATEMENT LINES
// =============================================================================

// ListStatementLines returns statement lines, optionally filtered by
// account_id and status query parameters.
func (h *Handler) ListStatementLines(w http.ResponseWriter, r *http.Request) {
	f := recon.LineFilters{
		AccountID: r.URL.Query().Get("account_id"),
		Status:    recon.LineStatus(r.URL.Query().Get("status")),
	}
	lines, err := h.svc.Store().ListStatementLines(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list statement lines", err)
		return
	}
	dtos := make([]StatementLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = toLineDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DiscardStatementLine deletes one line permanently.
func (h *Handler) DiscardStatementLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	done, err := h.svc.Discard(r.Context(), []string{id})
	if err != nil {
		h.writeBatchError(w, "Failed to discard statement line", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Succeeded: done})
}

// =============================================================================
// STATEMENTS
// =============================================================================

// PreviewStatement parses a statement without persisting anything,
// returning the decoded entries and the bank cross-check against the
// selected account.
func (h *Handler) PreviewStatement(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	st := ofx.Parse(req.Content)
	if len(st.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "No transactions found in the statement", ofx.ErrNoEntries)
		return
	}

	resp := PreviewResponse{
		BankID:      st.BankID,
		BankName:    banks.NameFromCode(st.BankID),
		AccountType: st.AccountType,
	}
	if req.AccountID != "" && resp.BankName != "" {
		if account, err := h.svc.Store().GetAccount(r.Context(), req.AccountID); err == nil {
			match := banks.NamesMatch(resp.BankName, account.Bank)
			resp.BankMatches = &match
		}
	}
	for _, e := range st.Entries {
		resp.Entries = append(resp.Entries, PreviewEntryDTO{
			ExternalID:  e.FitID,
			Direction:   string(e.Direction),
			Date:        e.DatePosted,
			Amount:      e.Amount.StringFixed(2),
			Memo:        e.Memo,
			CheckNumber: e.CheckNumber,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ImportStatement parses a statement and persists the lines not
// already stored for the account.
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}

	st := ofx.Parse(req.Content)
	result, err := h.svc.ImportStatement(r.Context(), req.AccountID, h.actingUser(r), ToImportEntries(st.Entries))
	if err != nil {
		h.writeDomainError(w, "Failed to import statement", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Inserted:          result.Inserted,
		Skipped:           result.Skipped,
		DuplicateSuspects: result.DuplicateSuspects,
	})
}

// ToImportEntries converts decoded OFX entries to engine input.
// Entries whose date was unusable come through with a zero Date and
// are counted as skipped by the engine.
func ToImportEntries(entries []ofx.Entry) []recon.ImportEntry {
	out := make([]recon.ImportEntry, 0, len(entries))
	for _, e := range entries {
		var date time.Time
		if e.DatePosted != "" {
			if parsed, err := time.ParseInLocation(dateFormat, e.DatePosted, time.UTC); err == nil {
				date = parsed
			}
		}
		out = append(out, recon.ImportEntry{
			ExternalID:  e.FitID,
			Direction:   recon.Direction(e.Direction),
			Date:        date,
			Amount:      e.Amount,
			Description: e.Memo,
			Memo:        e.Memo,
			CheckNumber: e.CheckNumber,
		})
	}
	return out
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Proposals computes match proposals for every pending line of an
// account. Advisory only; nothing is persisted.
func (h *Handler) Proposals(w http.ResponseWriter, r *http.Request) {
	var req ProposalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	proposals, err := h.svc.ProposeMatches(r.Context(), req.AccountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute proposals", err)
		return
	}

	dtos := make(map[string]ProposalDTO, len(proposals))
	for lineID, p := range proposals {
		dtos[lineID] = ProposalDTO{
			Action:        string(p.Action),
			TransactionID: p.TransactionID,
			Score:         p.Score,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Reconcile marks the selected pending lines reconciled, linking the
// explicitly chosen transaction when one is sent.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	done, err := h.svc.Reconcile(r.Context(), req.LineIDs, req.TransactionID, h.actingUser(r))
	if err != nil {
		h.writeBatchError(w, "Reconciliation stopped", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Succeeded: done})
}

// Unreconcile reverts the selected reconciled lines to pending.
func (h *Handler) Unreconcile(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	done, err := h.svc.Unreconcile(r.Context(), req.LineIDs)
	if err != nil {
		h.writeBatchError(w, "Unreconciliation stopped", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Succeeded: done})
}

// PostAndReconcile creates a completed transaction mirroring each
// selected pending line, then reconciles the line against it. For
// movements the ledger never recorded.
func (h *Handler) PostAndReconcile(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TransactionID != nil {
		writeError(w, http.StatusBadRequest, "post-and-reconcile does not accept a transaction id", nil)
		return
	}
	done, err := h.svc.PostAndReconcile(r.Context(), req.LineIDs, h.actingUser(r))
	if err != nil {
		h.writeBatchError(w, "Post-and-reconcile stopped", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Succeeded: done})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, recon.ErrParse):
		writeError(w, http.StatusBadRequest, "No transactions found in the statement", err)
	case recon.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case recon.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// writeBatchError reports a stopped transition batch, carrying the
// succeeded count so the client knows the batch was partially applied.
func (h *Handler) writeBatchError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, recon.ErrInvalidTransition):
		status = http.StatusConflict
	case recon.IsNotFound(err):
		status = http.StatusNotFound
	default:
		h.log.Error().Err(err).Msg(message)
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var batch *recon.BatchError
	if errors.As(err, &batch) {
		resp.Succeeded = &batch.Succeeded
	}
	writeJSON(w, status, resp)
}
