/*
store.go - Persistence boundary consumed by the engine

PURPOSE:
  The engine treats persistence as an external collaborator: a record
  store exposing create/read/update/delete calls keyed by opaque ids.
  Every call may fail with a network or constraint error; the engine
  treats every such failure as retryable-by-resubmission, never as a
  reason to silently skip.

IMPLEMENTATIONS:
  store/memory: mutex-guarded maps, for tests and dev
  store/sqlite: migrated SQLite schema, for real deployments
*/
package recon

import (
	"context"
	"time"
)

// LineFilters narrows ListStatementLines. Zero values mean no filter.
type LineFilters struct {
	AccountID string
	Status    LineStatus
}

// TransactionFilters narrows ListTransactions. Zero values mean no
// filter.
type TransactionFilters struct {
	AccountID string
	Status    TransactionStatus
}

// StatementLineUpdate is a partial update: nil fields are left
// untouched by the store. Mirrors the single-row status update the
// reconciliation surface issues per line.
type StatementLineUpdate struct {
	Status               LineStatus
	MatchedTransactionID *string
	ReconciledAt         *time.Time
	ReconciledBy         *string
}

// Store is the record-store boundary.
type Store interface {
	// ListStatementLines returns lines in stable store order
	// (insertion order for memory, primary-key order for SQL).
	ListStatementLines(ctx context.Context, f LineFilters) ([]StatementLine, error)
	GetStatementLine(ctx context.Context, id string) (StatementLine, error)
	// InsertStatementLines persists a batch and returns the stored
	// lines with ids assigned. All-or-nothing per call.
	InsertStatementLines(ctx context.Context, lines []StatementLine) ([]StatementLine, error)
	UpdateStatementLine(ctx context.Context, id string, upd StatementLineUpdate) (StatementLine, error)
	DeleteStatementLine(ctx context.Context, id string) error

	ListTransactions(ctx context.Context, f TransactionFilters) ([]Transaction, error)
	CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)

	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, a Account) (Account, error)

	// OrganizationForUser resolves the acting user's membership.
	OrganizationForUser(ctx context.Context, userID string) (string, error)
}
