/*
service.go - Import, de-duplication and state transitions

PURPOSE:
  The write side of the engine. Import persists decoded statement
  entries that are not already stored; the four transition operations
  (reconcile, unreconcile, post-and-reconcile, discard) commit the
  human's decisions one store call per line.

PARTIAL FAILURE:
  A batch stops at the first failing line. Lines already applied stay
  applied; the BatchError carries how many succeeded so the caller can
  re-query and retry just the remainder. The engine never reports
  success for something that did not persist.
*/
package recon

import (
	"context"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service wires the engine to a record store.
type Service struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a Service. The clock is injectable for tests.
func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store exposes the underlying record store for read-only surfaces.
func (s *Service) Store() Store { return s.store }

// =============================================================================
// IMPORT
// =============================================================================

// ImportEntry is one decoded statement record handed to import. Date
// must be a calendar date at UTC midnight; entries whose source date
// was unusable carry a zero Date and are counted as skipped.
type ImportEntry struct {
	ExternalID  string
	Direction   Direction
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Memo        string
	CheckNumber string
}

// ImportStatement persists the decoded entries for one account,
// skipping every entry whose dedup key is already stored for that
// account. De-duplication compares against stored lines only, not
// against sibling entries in the same batch: a file that repeats a
// block imports it twice (observed behavior, flagged as a suspect
// instead of silently fixed).
func (s *Service) ImportStatement(ctx context.Context, accountID, userID string, entries []ImportEntry) (ImportResult, error) {
	if len(entries) == 0 {
		return ImportResult{}, ErrParse
	}

	orgID, err := s.store.OrganizationForUser(ctx, userID)
	if err != nil {
		return ImportResult{}, err
	}

	existing, err := s.store.ListStatementLines(ctx, LineFilters{AccountID: accountID})
	if err != nil {
		return ImportResult{}, &ImportError{AccountID: accountID, Err: err}
	}

	seen := make(map[string]bool, len(existing))
	for _, line := range existing {
		seen[line.DedupKey()] = true
	}

	var fresh []StatementLine
	skipped := 0
	for _, e := range entries {
		if e.Date.IsZero() {
			skipped++
			continue
		}
		line := StatementLine{
			OrganizationID: orgID,
			AccountID:      accountID,
			UserID:         userID,
			Date:           e.Date,
			Amount:         e.Amount,
			Direction:      e.Direction,
			Description:    e.Description,
			Memo:           e.Memo,
			ExternalID:     e.ExternalID,
			CheckNumber:    e.CheckNumber,
			Status:         LinePending,
		}
		if seen[line.DedupKey()] {
			skipped++
			continue
		}
		fresh = append(fresh, line)
	}

	suspects := countDuplicateSuspects(fresh)
	if suspects > 0 {
		s.log.Warn().
			Str("account_id", accountID).
			Int("pairs", suspects).
			Msg("statement contains near-identical entries; importing all of them")
	}

	result := ImportResult{Skipped: skipped, DuplicateSuspects: suspects}
	if len(fresh) == 0 {
		return result, nil
	}

	inserted, err := s.store.InsertStatementLines(ctx, fresh)
	if err != nil {
		return ImportResult{}, &ImportError{AccountID: accountID, Err: err}
	}

	result.Inserted = len(inserted)
	s.log.Info().
		Str("account_id", accountID).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Msg("statement imported")
	return result, nil
}

// countDuplicateSuspects flags pairs inside one batch that look like
// the same movement: equal amount, dates within a week and nearly
// identical descriptions. They are imported anyway; the count only
// feeds a warning.
func countDuplicateSuspects(lines []StatementLine) int {
	pairs := 0
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			a, b := lines[i], lines[j]
			if !a.Amount.Equal(b.Amount) || a.Direction != b.Direction {
				continue
			}
			if daysApart(a.Date, b.Date) > 7 {
				continue
			}
			if descriptionDistance(a.Description, b.Description) < 0.4 {
				pairs++
			}
		}
	}
	return pairs
}

// descriptionDistance is the Levenshtein distance normalized by the
// longer description; 0 means identical.
func descriptionDistance(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein.ComputeDistance(strings.ToUpper(a), strings.ToUpper(b))
	return float64(dist) / float64(longest)
}

// =============================================================================
// MATCH PROPOSALS
// =============================================================================

// ProposeMatches loads the pending snapshots for an account and runs
// the scorer. Read-only; safe to re-run on demand.
func (s *Service) ProposeMatches(ctx context.Context, accountID string) (map[string]Proposal, error) {
	lines, err := s.store.ListStatementLines(ctx, LineFilters{AccountID: accountID, Status: LinePending})
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.ListTransactions(ctx, TransactionFilters{AccountID: accountID, Status: TxPending})
	if err != nil {
		return nil, err
	}
	return ProposeMatches(lines, candidates), nil
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// Reconcile marks each pending line reconciled, linking the
// explicitly chosen transaction, if any. A line may be reconciled with
// no linked transaction (manual or cash adjustments).
func (s *Service) Reconcile(ctx context.Context, lineIDs []string, transactionID *string, userID string) (int, error) {
	done := 0
	for _, id := range lineIDs {
		line, err := s.store.GetStatementLine(ctx, id)
		if err != nil {
			return done, &BatchError{Op: "reconcile", Succeeded: done, LineID: id, Err: err}
		}
		if line.Status != LinePending {
			return done, &BatchError{Op: "reconcile", Succeeded: done, LineID: id,
				Err: &InvalidTransitionError{LineID: id, Status: line.Status, Required: LinePending}}
		}

		now := s.now()
		by := userID
		upd := StatementLineUpdate{
			Status:       LineReconciled,
			ReconciledAt: &now,
			ReconciledBy: &by,
		}
		if transactionID != nil {
			upd.MatchedTransactionID = transactionID
		}
		if _, err := s.store.UpdateStatementLine(ctx, id, upd); err != nil {
			return done, &BatchError{Op: "reconcile", Succeeded: done, LineID: id, Err: err}
		}
		done++
	}
	return done, nil
}

// Unreconcile reverts reconciled lines to pending. The historical
// link and reconciliation metadata are retained; only status reverts.
func (s *Service) Unreconcile(ctx context.Context, lineIDs []string) (int, error) {
	done := 0
	for _, id := range lineIDs {
		line, err := s.store.GetStatementLine(ctx, id)
		if err != nil {
			return done, &BatchError{Op: "unreconcile", Succeeded: done, LineID: id, Err: err}
		}
		if line.Status != LineReconciled {
			return done, &BatchError{Op: "unreconcile", Succeeded: done, LineID: id,
				Err: &InvalidTransitionError{LineID: id, Status: line.Status, Required: LineReconciled}}
		}
		if _, err := s.store.UpdateStatementLine(ctx, id, StatementLineUpdate{Status: LinePending}); err != nil {
			return done, &BatchError{Op: "unreconcile", Succeeded: done, LineID: id, Err: err}
		}
		done++
	}
	return done, nil
}

// PostAndReconcile handles the movement the ledger never recorded:
// for each pending line it creates a completed transaction mirroring
// the line, then reconciles the line against it.
func (s *Service) PostAndReconcile(ctx context.Context, lineIDs []string, userID string) (int, error) {
	done := 0
	for _, id := range lineIDs {
		line, err := s.store.GetStatementLine(ctx, id)
		if err != nil {
			return done, &BatchError{Op: "post", Succeeded: done, LineID: id, Err: err}
		}
		if line.Status != LinePending {
			return done, &BatchError{Op: "post", Succeeded: done, LineID: id,
				Err: &InvalidTransitionError{LineID: id, Status: line.Status, Required: LinePending}}
		}

		kind := KindExpense
		if line.Direction == Credit {
			kind = KindIncome
		}
		tx, err := s.store.CreateTransaction(ctx, Transaction{
			ID:             uuid.NewString(),
			OrganizationID: line.OrganizationID,
			AccountID:      line.AccountID,
			Description:    line.Description,
			Amount:         line.Amount,
			Kind:           kind,
			Date:           line.Date,
			Status:         TxCompleted, // the movement already happened per the bank
		})
		if err != nil {
			return done, &BatchError{Op: "post", Succeeded: done, LineID: id, Err: err}
		}

		now := s.now()
		by := userID
		txID := tx.ID
		_, err = s.store.UpdateStatementLine(ctx, id, StatementLineUpdate{
			Status:               LineReconciled,
			MatchedTransactionID: &txID,
			ReconciledAt:         &now,
			ReconciledBy:         &by,
		})
		if err != nil {
			return done, &BatchError{Op: "post", Succeeded: done, LineID: id, Err: err}
		}
		done++
	}
	return done, nil
}

// Discard deletes lines permanently. No status precondition;
// irreversible.
func (s *Service) Discard(ctx context.Context, lineIDs []string) (int, error) {
	done := 0
	for _, id := range lineIDs {
		if err := s.store.DeleteStatementLine(ctx, id); err != nil {
			return done, &BatchError{Op: "discard", Succeeded: done, LineID: id, Err: err}
		}
		done++
	}
	return done, nil
}
