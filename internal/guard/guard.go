// Package guard decides what an importer may touch on an existing contact.
// The lock tier state machine and the rule table live here; the merge engine
// consults the guard per field category and logs every denial, it never
// silently skips.
package guard

import (
	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
)

// Permission is what an importer may do to one field category at one tier.
// Lock policy is per field category, not all-or-nothing per record.
type Permission int

const (
	// None: no import write at all, not even into an empty slot.
	None Permission = iota
	// FillOnly: may write into empty slots; present values are frozen.
	FillOnly
	// Full: may fill and may replace present values via source priority.
	Full
)

// Allows reports whether the permission covers an overwrite (true) or only
// checks fillability when overwrite is false.
func (p Permission) Allows(overwrite bool) bool {
	if overwrite {
		return p == Full
	}
	return p != None
}

// lockRules is the static table mapping lock_level x field-category to the
// permitted write level. source_system is never writable by an importer at
// any tier. FULL_LOCK permits nothing. PARTIAL_LOCK permits subscription
// changes and pure enrichment of still-empty fields; present values are
// frozen. UNLOCKED permits full overwrite of everything except
// source_system.
var lockRules = map[models.LockLevel]map[models.FieldCategory]Permission{
	models.LockUnlocked: {
		models.FieldSubscription: Full,
		models.FieldName:         Full,
		models.FieldAddress:      Full,
		models.FieldEnrichment:   Full,
		models.FieldSourceSystem: None,
	},
	models.LockPartial: {
		models.FieldSubscription: Full,
		models.FieldName:         FillOnly,
		models.FieldAddress:      FillOnly,
		models.FieldEnrichment:   FillOnly,
		models.FieldSourceSystem: None,
	},
	models.LockFull: {
		models.FieldSubscription: None,
		models.FieldName:         None,
		models.FieldAddress:      None,
		models.FieldEnrichment:   None,
		models.FieldSourceSystem: None,
	},
}

// Authorize evaluates the contact's lock tier against the rule table for one
// field category. Staff edits never pass through here; they are always fully
// permitted.
func Authorize(contact *models.Contact, category models.FieldCategory) Permission {
	rules, ok := lockRules[contact.LockLevel]
	if !ok {
		// Unknown tier reads as most restrictive; a corrupted lock level
		// must not open the contact up.
		return None
	}
	return rules[category]
}

// ConsentWriteAllowed applies the subscription shield, which is evaluated
// independently of lock tier: a contact that ever opted in must not have
// consent silently reverted by an import. Only an explicit unsubscribe from
// the same channel that recorded the consent may revoke it.
func ConsentWriteAllowed(contact *models.Contact, next models.SubscriptionStatus, channel id.SourceSystem) bool {
	if next != models.SubscriptionUnsubscribed {
		return true
	}
	if !contact.SubscriptionProtected {
		return true
	}
	return contact.Subscription.Channel == channel
}

// minSourcesPartial and minSourcesFull are the enrichment-history thresholds
// for automatic tier promotion.
const (
	minSourcesPartial = 2
	minSourcesFull    = 3
)

// RecomputeLockLevel derives the tier a contact should hold from its
// enrichment history. Monotonic: the result never sits below the current
// tier, so FULL_LOCK is terminal for automatic transitions and only
// StaffOverrideLockLevel can demote.
func RecomputeLockLevel(contact *models.Contact) models.LockLevel {
	next := models.LockUnlocked
	switch {
	case contact.StaffEdits > 0 || contact.DistinctSources() >= minSourcesFull:
		next = models.LockFull
	case contact.DistinctSources() >= minSourcesPartial:
		next = models.LockPartial
	}
	if contact.LockLevel.AtLeast(next) {
		return contact.LockLevel
	}
	return next
}

// StaffOverrideLockLevel is the one path that may set any tier, including
// demotion. The caller audits the override.
func StaffOverrideLockLevel(contact *models.Contact, level models.LockLevel) {
	contact.LockLevel = level
}
