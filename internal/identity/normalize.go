// Package identity maintains the lookup structures that answer "who could
// this record be". Normalization here is the contract for every index key:
// the same raw value must always normalize to the same key, or the index
// produces false negatives and duplicates are created.
package identity

import (
	"strings"
	"unicode"

	pstrings "coalesce/pkg/platform/strings"
)

// phoneSuffixLen is the number of trailing digits used for the
// country-code-agnostic fallback match. Seven digits covers US numbers with
// and without the 1 prefix and area code variations seen in legacy exports.
const phoneSuffixLen = 7

// NormalizeEmail case-folds and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits. "  (555) 123-4567" and
// "5551234567" key identically.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneSuffix returns the suffix key for the fallback match, or "" when the
// number is too short to be meaningful as a suffix.
func PhoneSuffix(normalizedPhone string) string {
	if len(normalizedPhone) < phoneSuffixLen {
		return ""
	}
	return normalizedPhone[len(normalizedPhone)-phoneSuffixLen:]
}

// NormalizeName case-folds a full name, strips punctuation and parenthetical
// or braced suffixes, and collapses whitespace.
//
//	"Corin Blanchard {C}" -> "corin blanchard"
//	"O'Brien, Pat (volunteer)" -> "obrien pat"
func NormalizeName(name string) string {
	name = strings.ToLower(name)

	// Drop bracketed annotations wholesale; staff used them for curation
	// notes, never as part of the name.
	name = stripEnclosed(name, '(', ')')
	name = stripEnclosed(name, '{', '}')
	name = stripEnclosed(name, '[', ']')

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// Punctuation is dropped entirely: "o'brien" keys as "obrien".
	}
	return pstrings.CollapseSpaces(b.String())
}

func stripEnclosed(s string, open, close rune) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case open:
			depth++
		case close:
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
