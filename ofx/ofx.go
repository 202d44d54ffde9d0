/*
Package ofx decodes OFX bank statement files into normalized entries.

PURPOSE:
  OFX is the SGML-flavored format most banks export. Files are
  tag-delimited but rarely well-formed, so this decoder is tolerant:
  it extracts what it can by locating field markers and silently drops
  transaction blocks that are missing the fields required to identify
  a movement (FITID, TRNAMT, DTPOSTED).

CONTRACT:
  - Parse never fails on malformed input; it degrades by omission.
  - Entries come out in source order, never merged or re-sorted.
  - Amounts are absolute values; the sign decides the direction
    (non-negative -> Credit, negative -> Debit).
  - Callers that need at least one entry check against ErrNoEntries.

SEE ALSO:
  - recon/service.go: consumes Statement during import
*/
package ofx

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoEntries is returned by callers (not Parse itself) when a
// statement yields zero usable entries from an otherwise readable file.
var ErrNoEntries = errors.New("statement contains no usable entries")

// Direction classifies a statement entry as inbound or outbound.
type Direction string

const (
	Credit Direction = "C"
	Debit  Direction = "D"
)

// Entry is one decoded transaction block.
type Entry struct {
	FitID       string          // bank-assigned transaction id
	Direction   Direction       // inferred from the amount sign
	DatePosted  string          // YYYY-MM-DD, empty if the marker was too short
	Amount      decimal.Decimal // absolute value
	Memo        string          // MEMO, falling back to NAME, then a placeholder
	CheckNumber string
}

// Statement is the full decode result for one file.
type Statement struct {
	BankID      string
	AccountID   string
	AccountType string
	Entries     []Entry
}

// noDescription stands in when a block carries neither MEMO nor NAME.
const noDescription = "no description"

// markers that terminate a transaction block.
var blockTerminators = []string{"<stmttrn>", "</stmttrn>", "</banktranlist>"}

// tagPattern matches <TAG>value up to the next tag or newline.
func tagPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<` + tag + `>([^<` + "\n" + `]+)`)
}

var (
	reBankID   = tagPattern("BANKID")
	reAcctID   = tagPattern("ACCTID")
	reAcctType = tagPattern("ACCTTYPE")
	reDtPosted = tagPattern("DTPOSTED")
	reTrnAmt   = tagPattern("TRNAMT")
	reFitID    = tagPattern("FITID")
	reMemo     = tagPattern("MEMO")
	reName     = tagPattern("NAME")
	reCheckNum = tagPattern("CHECKNUM")
)

// tagValue returns the first occurrence of the tag's value, trimmed,
// or "" when the marker is absent.
func tagValue(re *regexp.Regexp, content string) string {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Parse decodes the raw text of one OFX file. It never returns an
// error: unusable blocks are dropped, missing bank fields come back
// as empty strings.
func Parse(content string) Statement {
	st := Statement{
		BankID:      tagValue(reBankID, content),
		AccountID:   tagValue(reAcctID, content),
		AccountType: tagValue(reAcctType, content),
	}

	for _, block := range transactionBlocks(content) {
		fitID := tagValue(reFitID, block)
		rawAmount := tagValue(reTrnAmt, block)
		rawDate := tagValue(reDtPosted, block)

		// A movement we cannot identify, value, or date is dropped.
		if fitID == "" || rawAmount == "" || rawDate == "" {
			continue
		}

		amount, err := parseAmount(rawAmount)
		if err != nil {
			continue
		}

		direction := Credit
		if amount.IsNegative() {
			direction = Debit
		}

		memo := tagValue(reMemo, block)
		if memo == "" {
			memo = tagValue(reName, block)
		}
		if memo == "" {
			memo = noDescription
		}

		st.Entries = append(st.Entries, Entry{
			FitID:       fitID,
			Direction:   direction,
			DatePosted:  parseDate(rawDate),
			Amount:      amount.Abs(),
			Memo:        memo,
			CheckNumber: tagValue(reCheckNum, block),
		})
	}

	return st
}

// transactionBlocks returns the text of each <STMTTRN> block, in
// source order. A block runs from its opening marker to the next
// block terminator.
func transactionBlocks(content string) []string {
	lower := strings.ToLower(content)
	var blocks []string

	pos := 0
	for {
		start := strings.Index(lower[pos:], "<stmttrn>")
		if start < 0 {
			break
		}
		start += pos + len("<stmttrn>")

		end := len(content)
		for _, term := range blockTerminators {
			if i := strings.Index(lower[start:], term); i >= 0 && start+i < end {
				end = start + i
			}
		}

		blocks = append(blocks, content[start:end])
		pos = end
	}
	return blocks
}

// parseAmount normalizes a decimal comma before parsing. Some banks
// emit "1234,56" instead of "1234.56".
func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
}

// parseDate converts an OFX timestamp (YYYYMMDD or YYYYMMDDHHMMSS,
// possibly with a timezone suffix) to YYYY-MM-DD. Values shorter than
// eight digits yield "".
func parseDate(raw string) string {
	if len(raw) < 8 {
		return ""
	}
	return raw[0:4] + "-" + raw[4:6] + "-" + raw[6:8]
}
