/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Done in handlers; DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/finlab/reconcile-engine/recon"
)

// =============================================================================
// DOMAIN DTOS
// =============================================================================

// StatementLineDTO represents a statement line in API responses.
type StatementLineDTO struct {
	ID                   string  `json:"id"`
	AccountID            string  `json:"account_id"`
	Date                 string  `json:"date"`
	Amount               string  `json:"amount"`
	Direction            string  `json:"direction"`
	Description          string  `json:"description"`
	Memo                 string  `json:"memo,omitempty"`
	ExternalID           string  `json:"external_id,omitempty"`
	CheckNumber          string  `json:"check_number,omitempty"`
	Status               string  `json:"status"`
	MatchedTransactionID *string `json:"matched_transaction_id"`
	ReconciledAt         *string `json:"reconciled_at,omitempty"`
	ReconciledBy         *string `json:"reconciled_by,omitempty"`
}

// TransactionDTO represents a ledger transaction in API responses.
type TransactionDTO struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Status      string `json:"status"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bank string `json:"bank"`
}

// ProposalDTO is the matcher's verdict for one line.
type ProposalDTO struct {
	Action        string  `json:"action"`
	TransactionID *string `json:"transaction_id"`
	Score         int     `json:"score"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	Name string `json:"name"`
	Bank string `json:"bank"`
}

// CreateTransactionRequest is the request to create a ledger
// transaction.
type CreateTransactionRequest struct {
	AccountID   string `json:"account_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Status      string `json:"status,omitempty"`
}

// StatementRequest carries one OFX file for preview or import.
type StatementRequest struct {
	AccountID string `json:"account_id"`
	Content   string `json:"content"`
}

// ProposalsRequest asks for match proposals over an account.
type ProposalsRequest struct {
	AccountID string `json:"account_id"`
}

// TransitionRequest selects lines for a state transition. The
// optional transaction id is only honored by reconcile.
type TransitionRequest struct {
	LineIDs       []string `json:"line_ids"`
	TransactionID *string  `json:"transaction_id,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// PreviewResponse is the parse-only result shown before confirming an
// import, including the bank cross-check.
type PreviewResponse struct {
	BankID      string            `json:"bank_id"`
	BankName    string            `json:"bank_name,omitempty"`
	AccountType string            `json:"account_type,omitempty"`
	BankMatches *bool             `json:"bank_matches,omitempty"`
	Entries     []PreviewEntryDTO `json:"entries"`
}

// PreviewEntryDTO is one decoded entry in a preview.
type PreviewEntryDTO struct {
	ExternalID  string `json:"external_id"`
	Direction   string `json:"direction"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Memo        string `json:"memo"`
	CheckNumber string `json:"check_number,omitempty"`
}

// ImportResponse summarizes an import batch.
type ImportResponse struct {
	Inserted          int `json:"inserted"`
	Skipped           int `json:"skipped"`
	DuplicateSuspects int `json:"duplicate_suspects,omitempty"`
}

// TransitionResponse reports how many lines a transition applied.
type TransitionResponse struct {
	Succeeded int `json:"succeeded"`
}

// ErrorResponse is the uniform error body. Succeeded is present when
// a batch stopped mid-way so the client can tell the user how far it
// got before re-querying.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Succeeded *int   `json:"succeeded,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLineDTO(l recon.StatementLine) StatementLineDTO {
	dto := StatementLineDTO{
		ID:                   l.ID,
		AccountID:            l.AccountID,
		Date:                 l.Date.Format("2006-01-02"),
		Amount:               l.Amount.StringFixed(2),
		Direction:            string(l.Direction),
		Description:          l.Description,
		Memo:                 l.Memo,
		ExternalID:           l.ExternalID,
		CheckNumber:          l.CheckNumber,
		Status:               string(l.Status),
		MatchedTransactionID: l.MatchedTransactionID,
	}
	if l.ReconciledAt != nil {
		s := l.ReconciledAt.Format(time.RFC3339)
		dto.ReconciledAt = &s
	}
	dto.ReconciledBy = l.ReconciledBy
	return dto
}

func toTransactionDTO(t recon.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Description: t.Description,
		Amount:      t.Amount.StringFixed(2),
		Kind:        string(t.Kind),
		Date:        t.Date.Format("2006-01-02"),
		Status:      string(t.Status),
	}
}

func toAccountDTO(a recon.Account) AccountDTO {
	return AccountDTO{ID: a.ID, Name: a.Name, Bank: a.Bank}
}
