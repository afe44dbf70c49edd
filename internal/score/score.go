// Package score holds the confidence scorer: pure functions that grade a
// proposed name, address, or match candidate from deterministic pattern
// rules. Nothing here touches storage; callers decide what to do with a tier.
package score

// Tier buckets a confidence result. Only HIGH results are ever auto-applied;
// everything else goes to the review queue and the contact is left untouched
// until a human confirms.
type Tier string

const (
	TierHigh        Tier = "HIGH"
	TierMedium      Tier = "MEDIUM"
	TierLow         Tier = "LOW"
	TierNeedsReview Tier = "NEEDS_REVIEW"
)

// AutoApply reports whether a result at this tier may be written without
// human confirmation.
func (t Tier) AutoApply() bool {
	return t == TierHigh
}
