package score

import (
	"coalesce/pkg/email"
)

// NameGuess is the scored result of deriving a name from an email address.
type NameGuess struct {
	First string
	Last  string
	Tier  Tier
	// OrgCandidate marks role accounts (info@, sales@) where the mailbox
	// belongs to an organization, not a person. Never auto-applied.
	OrgCandidate bool
	Reason       string
}

// NameFromEmail grades a firstname.lastname@ style derivation:
//
//	HIGH         both tokens are letter-only and the first matches the
//	             common-first-name dictionary
//	MEDIUM       a single recognizable first name was extracted
//	NEEDS_REVIEW everything else: role accounts, numeric handles, tokens
//	             with no recognizable name shape
func NameFromEmail(address string) NameGuess {
	if email.IsRoleAccount(address) {
		return NameGuess{
			Tier:         TierNeedsReview,
			OrgCandidate: true,
			Reason:       "role account, organization candidate",
		}
	}

	tokens := email.LocalTokens(address)
	if len(tokens) == 0 {
		return NameGuess{Tier: TierNeedsReview, Reason: "no usable local part"}
	}

	first := tokens[0]
	last := ""
	if len(tokens) > 1 {
		last = tokens[len(tokens)-1]
	}

	// Numeric or mixed tokens disqualify the guess outright; jdoe1987 tells
	// us nothing safe about the person's name.
	if !email.IsAlphabetic(first) || (last != "" && !email.IsAlphabetic(last)) {
		return NameGuess{Tier: TierNeedsReview, Reason: "non-name token in local part"}
	}

	switch {
	case last != "" && IsCommonFirstName(first):
		return NameGuess{
			First: email.Capitalize(first),
			Last:  email.Capitalize(last),
			Tier:  TierHigh,
		}
	case IsCommonFirstName(first):
		return NameGuess{
			First:  email.Capitalize(first),
			Tier:   TierMedium,
			Reason: "single recognizable first name",
		}
	default:
		return NameGuess{Tier: TierNeedsReview, Reason: "tokens do not match known name shapes"}
	}
}
