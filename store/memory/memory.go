// Package memory provides an in-memory recon.Store for tests and dev.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finlab/reconcile-engine/recon"
)

// Store keeps everything in slices guarded by one mutex. Slices, not
// maps, so listing order is insertion order - the engine's matcher is
// order-dependent and tests rely on a stable order.
type Store struct {
	mu            sync.RWMutex
	lines         []recon.StatementLine
	transactions  []recon.Transaction
	accounts      []recon.Account
	memberships   map[string]string // user id -> organization id
	failNextWrite error             // test hook, consumed by the next write
}

var _ recon.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{memberships: make(map[string]string)}
}

// AddMembership registers a user in an organization.
func (s *Store) AddMembership(userID, orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[userID] = orgID
}

// FailNextWrite makes the next mutating call return err. Test hook
// for partial-failure behavior.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextWrite = err
}

func (s *Store) takeFailure() error {
	err := s.failNextWrite
	s.failNextWrite = nil
	return err
}

func (s *Store) OrganizationForUser(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.memberships[userID]
	if !ok {
		return "", recon.ErrNoOrganization
	}
	return org, nil
}

// =============================================================================
// STATEMENT LINES
// =============================================================================

func (s *Store) ListStatementLines(_ context.Context, f recon.LineFilters) ([]recon.StatementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []recon.StatementLine
	for _, l := range s.lines {
		if f.AccountID != "" && l.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) GetStatementLine(_ context.Context, id string) (recon.StatementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lines {
		if l.ID == id {
			return l, nil
		}
	}
	return recon.StatementLine{}, recon.ErrLineNotFound
}

func (s *Store) InsertStatementLines(_ context.Context, lines []recon.StatementLine) ([]recon.StatementLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inserted := make([]recon.StatementLine, 0, len(lines))
	for _, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.CreatedAt = now
		l.UpdatedAt = now
		s.lines = append(s.lines, l)
		inserted = append(inserted, l)
	}
	return inserted, nil
}

func (s *Store) UpdateStatementLine(_ context.Context, id string, upd recon.StatementLineUpdate) (recon.StatementLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return recon.StatementLine{}, err
	}

	for i := range s.lines {
		if s.lines[i].ID != id {
			continue
		}
		l := &s.lines[i]
		l.Status = upd.Status
		if upd.MatchedTransactionID != nil {
			l.MatchedTransactionID = upd.MatchedTransactionID
		}
		if upd.ReconciledAt != nil {
			l.ReconciledAt = upd.ReconciledAt
		}
		if upd.ReconciledBy != nil {
			l.ReconciledBy = upd.ReconciledBy
		}
		l.UpdatedAt = time.Now().UTC()
		return *l, nil
	}
	return recon.StatementLine{}, recon.ErrLineNotFound
}

func (s *Store) DeleteStatementLine(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}

	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return nil
		}
	}
	return recon.ErrLineNotFound
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) ListTransactions(_ context.Context, f recon.TransactionFilters) ([]recon.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []recon.Transaction
	for _, t := range s.transactions {
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, t recon.Transaction) (recon.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return recon.Transaction{}, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.transactions = append(s.transactions, t)
	return t, nil
}

// =============================================================================
// ACCOUNTS / MEMBERSHIP
// =============================================================================

func (s *Store) ListAccounts(_ context.Context) ([]recon.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recon.Account, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (recon.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return recon.Account{}, recon.ErrAccountNotFound
}

func (s *Store) CreateAccount(_ context.Context, a recon.Account) (recon.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	s.accounts = append(s.accounts, a)
	return a, nil
}
