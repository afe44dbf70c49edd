package score

// MatchSignals captures which identity fields agreed between an incoming
// record and a candidate contact, plus whether any field actively disagreed.
// The matcher computes agreement; this file only grades it.
type MatchSignals struct {
	EmailMatched bool
	// PhoneExact is a digits-identical phone match; PhoneSuffix is the
	// country-code-agnostic fallback.
	PhoneExact  bool
	PhoneSuffix bool
	NameMatched bool
	// AddressMatched means normalized street+postal agreement.
	AddressMatched bool

	// NameConflict is set when both sides have a name and they disagree.
	// A phone match with conflicting names is the classic two-people-one-
	// household case and must never auto-merge.
	NameConflict bool
}

// MatchResult is the graded confidence for one candidate.
type MatchResult struct {
	Score  int
	Tier   Tier
	Reason string
}

// MatchConfidence grades a candidate on a 0-100 scale:
//
//	exact email match               near-certain, HIGH even when names
//	                                disagree (a differing name is a merge
//	                                policy question, not an identity one)
//	phone match + name agreement    HIGH
//	phone match, names disagree     NEEDS_REVIEW, never auto-merged
//	phone-only                      NEEDS_REVIEW (policy: phone is a real
//	                                but lower-confidence signal; see DESIGN)
//	name + address, no email/phone  MEDIUM, requires secondary confirmation
//	name-only                       LOW
func MatchConfidence(s MatchSignals) MatchResult {
	phoneMatched := s.PhoneExact || s.PhoneSuffix

	switch {
	case s.EmailMatched:
		score := 90
		if s.NameMatched {
			score += 5
		}
		if phoneMatched {
			score += 5
		}
		// A conflicting name does not demote the match: the mailbox is
		// near-certain identity, and the fill-if-empty name policy blocks
		// and audits the disagreeing write during the merge.
		return MatchResult{Score: score, Tier: TierHigh, Reason: "exact email match"}

	case phoneMatched && s.NameConflict:
		return MatchResult{Score: 40, Tier: TierNeedsReview, Reason: "phone matched with conflicting names"}

	case phoneMatched && s.NameMatched:
		score := 85
		if s.PhoneSuffix && !s.PhoneExact {
			score -= 10
		}
		return MatchResult{Score: score, Tier: TierHigh, Reason: "phone and name agree"}

	case phoneMatched:
		return MatchResult{Score: 55, Tier: TierNeedsReview, Reason: "phone-only match"}

	case s.NameMatched && s.AddressMatched:
		return MatchResult{Score: 65, Tier: TierMedium, Reason: "name and address agree without email or phone"}

	case s.NameMatched:
		return MatchResult{Score: 30, Tier: TierLow, Reason: "name-only match"}

	default:
		return MatchResult{Score: 0, Tier: TierLow, Reason: "no identity agreement"}
	}
}
