// Package banks maps Brazilian central-bank institution codes (the
// BANKID field of an OFX file) to display names, so an import can be
// cross-checked against the account it is going into.
package banks

import "strings"

// byCode holds the institutions the product ships logos for. Codes
// are the COMPE numbers banks put in the OFX BANKID field, with and
// without zero padding.
var byCode = map[string]string{
	"1":   "Banco do Brasil",
	"33":  "Santander",
	"77":  "Inter",
	"104": "Caixa",
	"237": "Bradesco",
	"260": "Nubank",
	"336": "C6 Bank",
	"341": "Itaú",
}

// NameFromCode resolves a BANKID to an institution name. Unknown or
// empty codes return "".
func NameFromCode(code string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(code), "0")
	if trimmed == "" {
		return ""
	}
	return byCode[trimmed]
}

// NamesMatch reports whether a statement's institution name and an
// account's configured bank refer to the same institution. Matching is
// case-insensitive containment in either direction, so "Nubank" and
// "Nubank S.A." agree.
func NamesMatch(fileBank, accountBank string) bool {
	a := strings.ToLower(strings.TrimSpace(fileBank))
	b := strings.ToLower(strings.TrimSpace(accountBank))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
