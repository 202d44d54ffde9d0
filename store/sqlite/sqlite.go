/*
Package sqlite provides the SQLite-backed recon.Store.

PURPOSE:
  Real persistence for the reconciliation engine. The same SQL shape
  applies to PostgreSQL with minor dialect changes - the engine only
  ever sees the recon.Store interface.

SCHEMA:
  organizations, members, accounts, transactions,
  bank_statement_lines. The import dedup key
  (account, direction, date, amount, description) is also a unique
  index, so a racing duplicate insert fails loudly instead of
  slipping through.

MIGRATIONS:
  Versioned SQL files embedded in the binary, applied on New() with
  golang-migrate.

WAL MODE:
  Opened with WAL and a busy timeout: readers don't block and the
  single writer waits instead of erroring under light contention.
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/finlab/reconcile-engine/recon"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dateFormat = "2006-01-02"

// Store implements recon.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ recon.Store = (*Store)(nil)

// New opens (creating if needed) the database at path and applies
// pending migrations. Use ":memory:" for throwaway databases.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) OrganizationForUser(ctx context.Context, userID string) (string, error) {
	var org string
	err := s.db.QueryRowContext(ctx,
		`SELECT organization_id FROM members WHERE user_id = ?`, userID).Scan(&org)
	if errors.Is(err, sql.ErrNoRows) {
		return "", recon.ErrNoOrganization
	}
	if err != nil {
		return "", err
	}
	return org, nil
}

// =============================================================================
// STATEMENT LINES
// =============================================================================

const lineColumns = `id, organization_id, account_id, user_id, date, amount, direction,
 description, memo, external_id, check_number, status, matched_transaction_id,
 reconciled_at, reconciled_by, created_at, updated_at`

func (s *Store) ListStatementLines(ctx context.Context, f recon.LineFilters) ([]recon.StatementLine, error) {
	query := `SELECT ` + lineColumns + ` FROM bank_statement_lines`
	var where []string
	var args []any
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.StatementLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetStatementLine(ctx context.Context, id string) (recon.StatementLine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM bank_statement_lines WHERE id = ?`, id)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recon.StatementLine{}, recon.ErrLineNotFound
	}
	return l, err
}

func (s *Store) InsertStatementLines(ctx context.Context, lines []recon.StatementLine) ([]recon.StatementLine, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	inserted := make([]recon.StatementLine, 0, len(lines))
	for _, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.CreatedAt = now
		l.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bank_statement_lines (`+lineColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.OrganizationID, l.AccountID, l.UserID,
			l.Date.Format(dateFormat), l.Amount.StringFixed(2), string(l.Direction),
			l.Description, l.Memo, l.ExternalID, l.CheckNumber, string(l.Status),
			l.MatchedTransactionID, l.ReconciledAt, l.ReconciledBy,
			l.CreatedAt, l.UpdatedAt)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, l)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *Store) UpdateStatementLine(ctx context.Context, id string, upd recon.StatementLineUpdate) (recon.StatementLine, error) {
	set := []string{"status = ?", "updated_at = CURRENT_TIMESTAMP"}
	args := []any{string(upd.Status)}
	if upd.MatchedTransactionID != nil {
		set = append(set, "matched_transaction_id = ?")
		args = append(args, *upd.MatchedTransactionID)
	}
	if upd.ReconciledAt != nil {
		set = append(set, "reconciled_at = ?")
		args = append(args, *upd.ReconciledAt)
	}
	if upd.ReconciledBy != nil {
		set = append(set, "reconciled_by = ?")
		args = append(args, *upd.ReconciledBy)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_statement_lines SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return recon.StatementLine{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return recon.StatementLine{}, recon.ErrLineNotFound
	}
	return s.GetStatementLine(ctx, id)
}

func (s *Store) DeleteStatementLine(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bank_statement_lines WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return recon.ErrLineNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const txColumns = `id, organization_id, account_id, description, amount, kind, date,
 status, created_at, updated_at`

func (s *Store) ListTransactions(ctx context.Context, f recon.TransactionFilters) ([]recon.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions`
	var where []string
	var args []any
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateTransaction(ctx context.Context, t recon.Transaction) (recon.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrganizationID, t.AccountID, t.Description,
		t.Amount.StringFixed(2), string(t.Kind), t.Date.Format(dateFormat),
		string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return recon.Transaction{}, err
	}
	return t, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) ListAccounts(ctx context.Context) ([]recon.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, name, bank, created_at FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.Account
	for rows.Next() {
		var a recon.Account
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Bank, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id string) (recon.Account, error) {
	var a recon.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, bank, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Bank, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recon.Account{}, recon.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) CreateAccount(ctx context.Context, a recon.Account) (recon.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, organization_id, name, bank, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.OrganizationID, a.Name, a.Bank, a.CreatedAt)
	if err != nil {
		return recon.Account{}, err
	}
	return a, nil
}

// =============================================================================
// SCANNERS
// =============================================================================

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLine(row scanner) (recon.StatementLine, error) {
	var l recon.StatementLine
	var date, amount, direction, status string
	var matched, reconciledBy sql.NullString
	var reconciledAt sql.NullTime
	if err := row.Scan(&l.ID, &l.OrganizationID, &l.AccountID, &l.UserID,
		&date, &amount, &direction, &l.Description, &l.Memo, &l.ExternalID,
		&l.CheckNumber, &status, &matched, &reconciledAt, &reconciledBy,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return recon.StatementLine{}, err
	}

	parsed, err := time.ParseInLocation(dateFormat, date, time.UTC)
	if err != nil {
		return recon.StatementLine{}, fmt.Errorf("corrupt date %q on line %s: %w", date, l.ID, err)
	}
	l.Date = parsed

	l.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return recon.StatementLine{}, fmt.Errorf("corrupt amount %q on line %s: %w", amount, l.ID, err)
	}

	l.Direction = recon.Direction(direction)
	l.Status = recon.LineStatus(status)
	if matched.Valid {
		l.MatchedTransactionID = &matched.String
	}
	if reconciledAt.Valid {
		t := reconciledAt.Time
		l.ReconciledAt = &t
	}
	if reconciledBy.Valid {
		l.ReconciledBy = &reconciledBy.String
	}
	return l, nil
}

func scanTransaction(row scanner) (recon.Transaction, error) {
	var t recon.Transaction
	var date, amount, kind, status string
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.AccountID, &t.Description,
		&amount, &kind, &date, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return recon.Transaction{}, err
	}

	parsed, err := time.ParseInLocation(dateFormat, date, time.UTC)
	if err != nil {
		return recon.Transaction{}, fmt.Errorf("corrupt date %q on transaction %s: %w", date, t.ID, err)
	}
	t.Date = parsed

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return recon.Transaction{}, fmt.Errorf("corrupt amount %q on transaction %s: %w", amount, t.ID, err)
	}

	t.Kind = recon.TransactionKind(kind)
	t.Status = recon.TransactionStatus(status)
	return t, nil
}
