// Package email derives person-name guesses from email addresses.
//
// The local part of an address often encodes a name (jane.doe@, jdoe@), but
// role accounts (info@, sales@) and numeric handles never do. Callers use the
// token split here plus the scorer in internal/score to decide whether a
// derived name is trustworthy enough to apply.
package email

import (
	"strings"
	"unicode"
)

// roleAccounts are local parts that identify a mailbox, not a person. A
// record whose only name signal is one of these is an organization candidate
// and must never get an auto-derived person name.
var roleAccounts = map[string]bool{
	"info":       true,
	"sales":      true,
	"team":       true,
	"admin":      true,
	"office":     true,
	"contact":    true,
	"hello":      true,
	"support":    true,
	"billing":    true,
	"donations":  true,
	"membership": true,
	"events":     true,
	"noreply":    true,
	"no-reply":   true,
	"mail":       true,
	"enquiries":  true,
	"bookings":   true,
}

// LocalTokens splits the local part of an address on common name separators
// and lowercases the result. Returns nil when there is no usable local part.
func LocalTokens(email string) []string {
	local := strings.ToLower(strings.TrimSpace(email))
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if local == "" {
		return nil
	}
	// Strip plus-addressing before splitting; jane.doe+news@ is still jane.doe.
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}
	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// IsRoleAccount reports whether the address belongs to a shared mailbox
// rather than a person.
func IsRoleAccount(email string) bool {
	tokens := LocalTokens(email)
	if len(tokens) == 0 {
		return false
	}
	return roleAccounts[strings.Join(tokens, "-")] || roleAccounts[tokens[0]] && len(tokens) == 1
}

// DeriveName builds a capitalized first/last name guess from an address.
// Returns empty strings when the local part yields no name-shaped tokens;
// confidence in the guess is the scorer's job, not this package's.
func DeriveName(email string) (first, last string) {
	tokens := LocalTokens(email)
	if len(tokens) == 0 || IsRoleAccount(email) {
		return "", ""
	}
	first = Capitalize(tokens[0])
	if len(tokens) > 1 {
		last = Capitalize(tokens[len(tokens)-1])
	}
	return first, last
}

// IsAlphabetic reports whether a token is letters only. Tokens with digits
// (jdoe1987) disqualify a name guess.
func IsAlphabetic(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Capitalize uppercases the first rune of a token.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
