package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	require.NoError(t, err)
	return d
}

func line(t *testing.T, id string, dir Direction, amount, date, desc string) StatementLine {
	t.Helper()
	return StatementLine{
		ID:          id,
		AccountID:   "acc-1",
		Direction:   dir,
		Amount:      decimal.RequireFromString(amount),
		Date:        day(t, date),
		Description: desc,
		Status:      LinePending,
	}
}

func candidate(t *testing.T, id string, kind TransactionKind, amount, date, desc string) Transaction {
	t.Helper()
	return Transaction{
		ID:          id,
		AccountID:   "acc-1",
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		Date:        day(t, date),
		Description: desc,
		Status:      TxPending,
	}
}

func TestProposeMatches_ExactMatch(t *testing.T) {
	lines := []StatementLine{line(t, "l1", Debit, "50.00", "2026-01-10", "grocery store")}
	cands := []Transaction{candidate(t, "t1", KindExpense, "50.00", "2026-01-10", "grocery store")}

	got := ProposeMatches(lines, cands)
	require.Contains(t, got, "l1")
	p := got["l1"]
	assert.Equal(t, ActionLinked, p.Action)
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "t1", *p.TransactionID)
	assert.Equal(t, 100, p.Score)
}

func TestProposeMatches_PolarityVeto(t *testing.T) {
	// Identical in every dimension, but an expense can never settle an
	// inbound line no matter the score.
	lines := []StatementLine{line(t, "l1", Credit, "50.00", "2026-01-10", "refund")}
	cands := []Transaction{candidate(t, "t1", KindExpense, "50.00", "2026-01-10", "refund")}

	got := ProposeMatches(lines, cands)
	assert.Equal(t, ActionUnmatched, got["l1"].Action)
	assert.Nil(t, got["l1"].TransactionID)

	// Transfers settle against outbound lines.
	lines = []StatementLine{line(t, "l2", Debit, "50.00", "2026-01-10", "wire out")}
	cands = []Transaction{candidate(t, "t2", KindTransfer, "50.00", "2026-01-10", "wire out")}
	got = ProposeMatches(lines, cands)
	assert.Equal(t, ActionLinked, got["l2"].Action)
}

func TestProposeMatches_Threshold(t *testing.T) {
	// Amount within 5% (+25) and date within a week (+5): 30 total,
	// below the bar, so no proposal.
	lines := []StatementLine{line(t, "l1", Debit, "100.00", "2026-01-10", "aaa")}
	cands := []Transaction{candidate(t, "t1", KindExpense, "104.00", "2026-01-15", "zzz")}

	got := ProposeMatches(lines, cands)
	assert.Equal(t, ActionUnmatched, got["l1"].Action)
	assert.Equal(t, 0, got["l1"].Score)
}

func TestProposeMatches_OneToOneConsumption(t *testing.T) {
	// Two equally good lines, one candidate: the earlier line takes it,
	// the later one goes unmatched.
	lines := []StatementLine{
		line(t, "l1", Debit, "50.00", "2026-01-10", "grocery store"),
		line(t, "l2", Debit, "50.00", "2026-01-10", "grocery store"),
	}
	cands := []Transaction{candidate(t, "t1", KindExpense, "50.00", "2026-01-10", "grocery store")}

	got := ProposeMatches(lines, cands)
	assert.Equal(t, ActionLinked, got["l1"].Action)
	assert.Equal(t, ActionUnmatched, got["l2"].Action)
}

func TestProposeMatches_FirstCandidateWinsTies(t *testing.T) {
	lines := []StatementLine{line(t, "l1", Debit, "50.00", "2026-01-10", "grocery store")}
	cands := []Transaction{
		candidate(t, "t1", KindExpense, "50.00", "2026-01-10", "grocery store"),
		candidate(t, "t2", KindExpense, "50.00", "2026-01-10", "grocery store"),
	}

	got := ProposeMatches(lines, cands)
	require.NotNil(t, got["l1"].TransactionID)
	assert.Equal(t, "t1", *got["l1"].TransactionID)
}

func TestProposeMatches_Deterministic(t *testing.T) {
	lines := []StatementLine{
		line(t, "l1", Debit, "50.00", "2026-01-10", "grocery store"),
		line(t, "l2", Credit, "1200.00", "2026-01-12", "salary"),
		line(t, "l3", Debit, "9.90", "2026-01-13", "streaming"),
	}
	cands := []Transaction{
		candidate(t, "t1", KindIncome, "1200.00", "2026-01-12", "monthly salary"),
		candidate(t, "t2", KindExpense, "50.00", "2026-01-11", "grocery"),
		candidate(t, "t3", KindExpense, "9.90", "2026-01-13", "streaming"),
	}

	first := ProposeMatches(lines, cands)
	second := ProposeMatches(lines, cands)
	assert.Equal(t, first, second)
	assert.Len(t, first, len(lines))
}

func TestAmountScore(t *testing.T) {
	l := line(t, "l1", Debit, "100.00", "2026-01-10", "x")

	assert.Equal(t, 50, amountScore(l, candidate(t, "t", KindExpense, "100.00", "2026-01-10", "x")))
	assert.Equal(t, 50, amountScore(l, candidate(t, "t", KindExpense, "100.005", "2026-01-10", "x")))
	assert.Equal(t, 25, amountScore(l, candidate(t, "t", KindExpense, "103.00", "2026-01-10", "x")))
	assert.Equal(t, 0, amountScore(l, candidate(t, "t", KindExpense, "106.00", "2026-01-10", "x")))
}

func TestDateScore(t *testing.T) {
	l := line(t, "l1", Debit, "10.00", "2026-01-10", "x")

	assert.Equal(t, 30, dateScore(l, candidate(t, "t", KindExpense, "10.00", "2026-01-10", "x")))
	assert.Equal(t, 15, dateScore(l, candidate(t, "t", KindExpense, "10.00", "2026-01-13", "x")))
	assert.Equal(t, 15, dateScore(l, candidate(t, "t", KindExpense, "10.00", "2026-01-07", "x")))
	assert.Equal(t, 5, dateScore(l, candidate(t, "t", KindExpense, "10.00", "2026-01-17", "x")))
	assert.Equal(t, 0, dateScore(l, candidate(t, "t", KindExpense, "10.00", "2026-01-20", "x")))
}

func TestDescriptionScore(t *testing.T) {
	cases := []struct {
		name       string
		line, cand string
		want       int
	}{
		{"containment", "PIX TRANSFER JOHN", "pix transfer", 20},
		{"containment reversed", "rent", "Rent january", 20},
		{"shared words capped", "alpha beta gamma delta", "delta gamma beta omitted", 15},
		{"two shared words", "alpha beta zzz", "beta yyy alpha", 10},
		{"no overlap", "coffee shop", "hardware store", 0},
		{"empty line side", "", "anything", 0},
		{"empty candidate side", "anything", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, descriptionScore(tc.line, tc.cand))
		})
	}
}
