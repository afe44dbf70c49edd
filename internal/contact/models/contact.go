package models

import (
	"time"

	id "coalesce/pkg/domain"
)

// LockLevel is the write-protection tier governing what an import may touch.
// It is recomputed from enrichment history, never hand-set, except by
// explicit staff override.
type LockLevel string

const (
	// LockUnlocked: single-source contact with no manual edits. Imports may
	// overwrite everything except source_system.
	LockUnlocked LockLevel = "UNLOCKED"
	// LockPartial: multi-source enriched. Imports may only change
	// subscription/consent status.
	LockPartial LockLevel = "PARTIAL_LOCK"
	// LockFull: staff-edited or enriched from 3+ sources. Imports may change
	// nothing; only explicit staff action demotes this tier.
	LockFull LockLevel = "FULL_LOCK"
)

// rank orders lock tiers for monotonicity checks. Higher is more protected.
func (l LockLevel) rank() int {
	switch l {
	case LockPartial:
		return 1
	case LockFull:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether the tier is at or above other.
func (l LockLevel) AtLeast(other LockLevel) bool {
	return l.rank() >= other.rank()
}

// FieldCategory groups contact fields for the lock rule table. Lock decisions
// are per category, not per record, so a PARTIAL_LOCK contact can still take
// a consent update while its name stays frozen.
type FieldCategory string

const (
	FieldSubscription FieldCategory = "subscription_status"
	FieldName         FieldCategory = "name"
	FieldAddress      FieldCategory = "address"
	FieldSourceSystem FieldCategory = "source_system"
	FieldEnrichment   FieldCategory = "enrichment"
)

// SubscriptionStatus is the marketing-consent state of a contact.
type SubscriptionStatus string

const (
	SubscriptionUnknown      SubscriptionStatus = "unknown"
	SubscriptionSubscribed   SubscriptionStatus = "subscribed"
	SubscriptionUnsubscribed SubscriptionStatus = "unsubscribed"
)

// EmailAddress is one value of the multi-value email identity field.
type EmailAddress struct {
	Address string
	Primary bool
	Source  id.SourceSystem
	AddedAt time.Time
}

// PhoneNumber is one value of the multi-value phone identity field.
type PhoneNumber struct {
	Number  string
	Primary bool
	Source  id.SourceSystem
	AddedAt time.Time
}

// PostalAddress is one value of the multi-value postal address field.
type PostalAddress struct {
	Street        string
	City          string
	State         string
	PostalCode    string
	Primary       bool
	USPSValidated bool
	Source        id.SourceSystem
	AddedAt       time.Time
}

// SourceRef is one entry of the append-only source history, distinct from the
// immutable source_system of origin. ExternalID is the record key in that
// platform; (Source, ExternalID) is unique across the store and is what makes
// batch re-runs idempotent.
type SourceRef struct {
	Source     id.SourceSystem
	ExternalID string
	FirstSeen  time.Time
}

// Consent is the provable subscription state: who recorded it, how, and when.
// A withdrawal is only honored from the same channel that recorded consent.
type Consent struct {
	Status        SubscriptionStatus
	Channel       id.SourceSystem
	Method        id.ConsentMethod
	EffectiveDate time.Time
}

// Contact is the canonical person/organization entity. Never hard-deleted;
// DeletedAt tombstones it while preserving the financial and audit trail.
type Contact struct {
	ID          id.ContactID
	FirstName   string
	LastName    string
	DisplayName string

	Emails    []EmailAddress
	Phones    []PhoneNumber
	Addresses []PostalAddress

	// SourceSystem is the platform of first sighting. Write-once.
	SourceSystem id.SourceSystem
	// Sources is the append-only history of every (source, external id) that
	// has contributed data to this contact.
	Sources []SourceRef

	LockLevel             LockLevel
	SubscriptionProtected bool
	Subscription          Consent

	// Derived aggregates. Recomputed additively during merge, never imported
	// as-is: historical duplicate records each held partial totals and a
	// blind overwrite hides revenue.
	TotalValueCents  int64
	TransactionCount int

	QualityScore   int
	AddressQuality int

	StaffEdits int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// HasIdentity reports whether at least one identity field is populated. A
// contact with no email, phone, or name violates the store invariant and can
// never be matched again.
func (c *Contact) HasIdentity() bool {
	return len(c.Emails) > 0 || len(c.Phones) > 0 || c.FullName() != ""
}

// FullName joins the name fields for display and normalized-name indexing.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.DisplayName != "":
		return c.DisplayName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// PrimaryEmail returns the primary email value, or the first one recorded.
func (c *Contact) PrimaryEmail() string {
	for _, e := range c.Emails {
		if e.Primary {
			return e.Address
		}
	}
	if len(c.Emails) > 0 {
		return c.Emails[0].Address
	}
	return ""
}

// PrimaryPhone returns the primary phone value, or the first one recorded.
func (c *Contact) PrimaryPhone() string {
	for _, p := range c.Phones {
		if p.Primary {
			return p.Number
		}
	}
	if len(c.Phones) > 0 {
		return c.Phones[0].Number
	}
	return ""
}

// PrimaryAddress returns the primary postal address if any.
func (c *Contact) PrimaryAddress() (PostalAddress, bool) {
	for _, a := range c.Addresses {
		if a.Primary {
			return a, true
		}
	}
	if len(c.Addresses) > 0 {
		return c.Addresses[0], true
	}
	return PostalAddress{}, false
}

// DistinctSources counts how many different platforms have contributed data.
// Lock tier transitions key off this.
func (c *Contact) DistinctSources() int {
	seen := make(map[id.SourceSystem]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		seen[s.Source] = struct{}{}
	}
	return len(seen)
}

// HasSourceRecord reports whether (source, externalID) is already in the
// source history.
func (c *Contact) HasSourceRecord(source id.SourceSystem, externalID string) bool {
	for _, s := range c.Sources {
		if s.Source == source && s.ExternalID == externalID {
			return true
		}
	}
	return false
}

// IsTombstoned reports whether the contact has been soft-deleted.
func (c *Contact) IsTombstoned() bool {
	return c.DeletedAt != nil
}

// Clone deep-copies the contact. The merge engine mutates a clone and commits
// it whole, so a failed merge never leaves a half-written contact visible.
func (c *Contact) Clone() *Contact {
	cp := *c
	cp.Emails = append([]EmailAddress(nil), c.Emails...)
	cp.Phones = append([]PhoneNumber(nil), c.Phones...)
	cp.Addresses = append([]PostalAddress(nil), c.Addresses...)
	cp.Sources = append([]SourceRef(nil), c.Sources...)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}
