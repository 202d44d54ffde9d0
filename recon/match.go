/*
match.go - Candidate scoring for statement lines

PURPOSE:
  For every pending statement line, propose at most one best-matching
  pending ledger transaction, or none. Purely advisory: nothing is
  persisted, re-running on unchanged snapshots yields the identical
  proposal map.

SCORING (0-100):
  Polarity veto  - a candidate whose kind maps to the other direction
                   is rejected before any scoring
  Amount         - +50 exact (difference < 0.01), +25 within 5%
  Date proximity - +30 same day, +15 within 3 days, +5 within 7
  Description    - +20 substring either way, else +5 per shared word
                   capped at +15

  A line only receives a proposal when its best candidate reaches 50.

CONSUMPTION:
  Each transaction is consumed by at most one line. Lines are scanned
  in their given order and the first one whose best candidate clears
  the threshold wins it. The result is order-dependent by design; a
  globally optimal assignment is a possible future upgrade, not a
  correctness requirement.

COMPLEXITY:
  O(lines x candidates); fine at interactive volumes, cheap enough to
  re-run after every import or edit.
*/
package recon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const matchThreshold = 50

var (
	centTolerance = decimal.New(1, -2) // 0.01
	relTolerance  = decimal.New(5, -2) // 5%
)

// ProposeMatches scores every line against the candidate pool and
// returns a proposal per line id. Both slices are point-in-time
// snapshots; the function never mutates them.
func ProposeMatches(lines []StatementLine, candidates []Transaction) map[string]Proposal {
	proposals := make(map[string]Proposal, len(lines))
	used := make(map[string]bool)

	for _, line := range lines {
		bestScore := 0
		bestID := ""

		for _, cand := range candidates {
			if used[cand.ID] {
				continue
			}
			if cand.Kind.Polarity() != line.Direction {
				continue
			}

			score := amountScore(line, cand) + dateScore(line, cand) + descriptionScore(line.Description, cand.Description)
			if score >= matchThreshold && score > bestScore {
				bestScore = score
				bestID = cand.ID
			}
		}

		if bestID != "" {
			used[bestID] = true
			id := bestID
			proposals[line.ID] = Proposal{Action: ActionLinked, TransactionID: &id, Score: bestScore}
		} else {
			proposals[line.ID] = Proposal{Action: ActionUnmatched, Score: 0}
		}
	}

	return proposals
}

func amountScore(line StatementLine, cand Transaction) int {
	diff := cand.Amount.Sub(line.Amount).Abs()
	if diff.LessThan(centTolerance) {
		return 50
	}
	if line.Amount.IsPositive() && diff.Div(line.Amount).LessThan(relTolerance) {
		return 25
	}
	return 0
}

func dateScore(line StatementLine, cand Transaction) int {
	days := daysApart(line.Date, cand.Date)
	switch {
	case days == 0:
		return 30
	case days <= 3:
		return 15
	case days <= 7:
		return 5
	}
	return 0
}

// daysApart is the absolute difference in whole days. Dates are
// stored at UTC midnight, so the division is exact.
func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

// descriptionScore compares free-text descriptions. Full containment
// either way is the strong signal; otherwise each whitespace word of
// the line's description found inside the candidate's counts partial
// credit.
func descriptionScore(lineDesc, candDesc string) int {
	a := strings.ToLower(strings.TrimSpace(lineDesc))
	b := strings.ToLower(strings.TrimSpace(candDesc))
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 20
	}

	score := 0
	for _, word := range strings.Fields(a) {
		if strings.Contains(b, word) {
			score += 5
			if score >= 15 {
				return 15
			}
		}
	}
	return score
}
