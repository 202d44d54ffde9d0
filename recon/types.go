/*
Package recon is the bank statement reconciliation engine.

PURPOSE:
  Matching externally-imported statement lines against ledger
  transactions and committing the resulting state transitions.
  The package is split into:
  - types.go:   domain model (statement lines, transactions, enums)
  - store.go:   persistence boundary consumed by the engine
  - match.go:   pure scoring/proposal algorithm
  - service.go: import, de-duplication and state transitions
  - errors.go:  error taxonomy

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount, never floats
  2. Purity: scoring reads snapshots and writes nothing
  3. Explicit transitions: only service.go mutates state, one store
     call per line, stop at the first failure
*/
package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// Direction is the side of a statement line: inbound or outbound.
type Direction string

const (
	Credit Direction = "C"
	Debit  Direction = "D"
)

// LineStatus is the lifecycle state of a statement line.
type LineStatus string

const (
	LinePending    LineStatus = "pending"
	LineReconciled LineStatus = "reconciled"
	LineIgnored    LineStatus = "ignored"
)

// TransactionKind classifies a ledger transaction.
type TransactionKind string

const (
	KindIncome   TransactionKind = "income"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
)

// Polarity maps a transaction kind onto the statement side it can
// settle against: income is inbound, everything else outbound.
func (k TransactionKind) Polarity() Direction {
	if k == KindIncome {
		return Credit
	}
	return Debit
}

// =============================================================================
// DOMAIN RECORDS
// =============================================================================

// StatementLine is one bank-reported movement imported from a
// statement file. Lines are created only by import and move
// pending -> reconciled (or back) or are discarded outright.
type StatementLine struct {
	ID                   string
	OrganizationID       string
	AccountID            string
	UserID               string
	Date                 time.Time // date precision, UTC midnight
	Amount               decimal.Decimal
	Direction            Direction
	Description          string
	Memo                 string
	ExternalID           string // bank FITID, may be empty
	CheckNumber          string
	Status               LineStatus
	MatchedTransactionID *string
	ReconciledAt         *time.Time
	ReconciledBy         *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DedupKey is the identity of a line for import de-duplication,
// scoped to its account: direction, date, amount and description.
// Amount is rendered with two decimals so "100" and "100.00" collide.
func (l StatementLine) DedupKey() string {
	return string(l.Direction) + "|" + l.Date.Format("2006-01-02") + "|" +
		l.Amount.StringFixed(2) + "|" + l.Description
}

// Transaction is one ledger-recorded movement, created by the user or
// posted by the engine when the bank shows a movement the ledger
// never recorded.
type Transaction struct {
	ID             string
	OrganizationID string
	AccountID      string
	Description    string
	Amount         decimal.Decimal // magnitude; sign is carried by Kind
	Kind           TransactionKind
	Date           time.Time
	Status         TransactionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Account is the slice of the accounts table the engine needs: the
// bank name for the import cross-check.
type Account struct {
	ID             string
	OrganizationID string
	Name           string
	Bank           string
	CreatedAt      time.Time
}

// =============================================================================
// ENGINE OUTPUTS
// =============================================================================

// ProposalAction says what the matcher suggests for a line.
type ProposalAction string

const (
	ActionLinked    ProposalAction = "linked"
	ActionUnmatched ProposalAction = "unmatched"
)

// Proposal is the matcher's advisory verdict for one statement line.
type Proposal struct {
	Action        ProposalAction
	TransactionID *string
	Score         int
}

// ImportResult summarizes one import batch.
type ImportResult struct {
	Inserted          int
	Skipped           int
	DuplicateSuspects int // same-file near-duplicates, inserted anyway
}
