// Package merge applies the field-by-field write policy that turns an
// incoming record plus an existing contact into the post-merge contact
// state. The engine works on a clone and returns it whole: callers commit
// all of it or none of it, so a partially applied merge is never observable.
package merge

import (
	"time"

	"coalesce/internal/contact/models"
	"coalesce/internal/guard"
	"coalesce/internal/identity"
	"coalesce/internal/score"
	id "coalesce/pkg/domain"
)

// Engine holds the fixed source-priority ordering used to resolve conflicting
// non-empty values. Higher number wins; the losing value is retained as a
// secondary, never discarded.
type Engine struct {
	priorities map[id.SourceSystem]int
}

// DefaultPriorities reflects which platform is the system of record for
// contact data: the membership platform outranks payment processors, which
// outrank ticketing and one-off imports.
func DefaultPriorities() map[id.SourceSystem]int {
	return map[id.SourceSystem]int{
		id.SourceStaff:      100,
		id.SourceMembership: 80,
		id.SourcePayments:   60,
		id.SourceAccounting: 50,
		id.SourceTicketing:  40,
		id.SourceLegacyCRM:  20,
	}
}

// New creates an engine with the given priority table.
func New(priorities map[id.SourceSystem]int) *Engine {
	if priorities == nil {
		priorities = DefaultPriorities()
	}
	return &Engine{priorities: priorities}
}

// Outcome describes what a merge did. BlockedFields is every category the
// guard denied; the pipeline logs those as merge-blocked rather than
// silently skipping.
type Outcome struct {
	Contact       *models.Contact
	ChangedFields []string
	BlockedFields []string
	// Changed is false when the record contributed nothing new: the
	// idempotent re-run case.
	Changed bool
}

// Apply merges an incoming record into a clone of the contact under the
// guard's rule table. The input contact is never mutated.
func (e *Engine) Apply(contact *models.Contact, record *models.IncomingRecord, now time.Time) *Outcome {
	out := &Outcome{Contact: contact.Clone()}
	c := out.Contact

	e.mergeName(c, record, out)
	e.mergeEmail(c, record, now, out)
	e.mergePhone(c, record, now, out)
	e.mergeAddress(c, record, now, out)
	e.mergeSubscription(c, record, now, out)
	e.mergeAggregates(c, record, out)
	e.appendSourceRef(c, record, now, out)

	if out.Changed {
		c.UpdatedAt = now
		c.LockLevel = guard.RecomputeLockLevel(c)
		recomputeQuality(c)
	}
	return out
}

func (e *Engine) mergeName(c *models.Contact, record *models.IncomingRecord, out *Outcome) {
	if record.FirstName == "" && record.LastName == "" {
		return
	}
	perm := guard.Authorize(c, models.FieldName)

	// Fill-if-empty: an existing name is never replaced and never blanked.
	if c.FirstName == "" && c.LastName == "" {
		if !perm.Allows(false) {
			out.BlockedFields = append(out.BlockedFields, string(models.FieldName))
			return
		}
		c.FirstName = record.FirstName
		c.LastName = record.LastName
		out.mark(string(models.FieldName))
		return
	}

	// Non-empty on both sides: a differing non-empty incoming part is a
	// blocked write; an absent or identical part attempted no overwrite.
	firstDiffers := record.FirstName != "" && record.FirstName != c.FirstName
	lastDiffers := record.LastName != "" && record.LastName != c.LastName
	if firstDiffers || lastDiffers {
		out.BlockedFields = append(out.BlockedFields, string(models.FieldName))
	}
}

func (e *Engine) mergeEmail(c *models.Contact, record *models.IncomingRecord, now time.Time, out *Outcome) {
	if record.Email == "" {
		return
	}
	if hasEmail(c, record.Email) {
		return
	}
	perm := guard.Authorize(c, models.FieldEnrichment)
	if !perm.Allows(false) {
		out.BlockedFields = append(out.BlockedFields, "email")
		return
	}

	next := models.EmailAddress{
		Address: record.Email,
		Source:  record.Source,
		AddedAt: now,
	}
	if len(c.Emails) == 0 {
		next.Primary = true
		c.Emails = append(c.Emails, next)
		out.mark("email")
		return
	}

	// Conflicting non-empty values: source priority decides which is
	// primary; the loser stays as a secondary value.
	if perm.Allows(true) && e.outranksPrimaryEmail(c, record.Source) {
		for i := range c.Emails {
			c.Emails[i].Primary = false
		}
		next.Primary = true
	}
	c.Emails = append(c.Emails, next)
	out.mark("email")
}

func (e *Engine) mergePhone(c *models.Contact, record *models.IncomingRecord, now time.Time, out *Outcome) {
	if record.Phone == "" {
		return
	}
	if hasPhone(c, record.Phone) {
		return
	}
	perm := guard.Authorize(c, models.FieldEnrichment)
	if !perm.Allows(false) {
		out.BlockedFields = append(out.BlockedFields, "phone")
		return
	}

	next := models.PhoneNumber{
		Number:  record.Phone,
		Source:  record.Source,
		AddedAt: now,
	}
	if len(c.Phones) == 0 {
		next.Primary = true
		c.Phones = append(c.Phones, next)
		out.mark("phone")
		return
	}

	if perm.Allows(true) && e.outranksPrimaryPhone(c, record.Source) {
		for i := range c.Phones {
			c.Phones[i].Primary = false
		}
		next.Primary = true
	}
	c.Phones = append(c.Phones, next)
	out.mark("phone")
}

func (e *Engine) mergeAddress(c *models.Contact, record *models.IncomingRecord, now time.Time, out *Outcome) {
	if !record.HasPostalAddress() {
		return
	}
	perm := guard.Authorize(c, models.FieldAddress)

	next := models.PostalAddress{
		Street:        record.Street,
		City:          record.City,
		State:         record.State,
		PostalCode:    record.PostalCode,
		USPSValidated: record.USPSValidated,
		Source:        record.Source,
		AddedAt:       now,
	}
	if hasAddress(c, next) {
		return
	}
	if !perm.Allows(false) {
		out.BlockedFields = append(out.BlockedFields, string(models.FieldAddress))
		return
	}

	if len(c.Addresses) == 0 {
		next.Primary = true
		c.Addresses = append(c.Addresses, next)
		out.mark(string(models.FieldAddress))
		return
	}

	// Promotion needs both a higher-priority source and an address at least
	// as complete as the current primary; a fragment from the system of
	// record must not displace a full validated address.
	if perm.Allows(true) && e.outranksPrimaryAddress(c, record.Source) && addressUpgrade(c, record) {
		for i := range c.Addresses {
			c.Addresses[i].Primary = false
		}
		next.Primary = true
	}
	c.Addresses = append(c.Addresses, next)
	out.mark(string(models.FieldAddress))
}

func addressUpgrade(c *models.Contact, record *models.IncomingRecord) bool {
	current, ok := c.PrimaryAddress()
	if !ok {
		return true
	}
	return score.RecordAddressCompleteness(record) >= score.AddressCompleteness(current)
}

func (e *Engine) mergeSubscription(c *models.Contact, record *models.IncomingRecord, now time.Time, out *Outcome) {
	if record.Subscription == nil {
		return
	}
	nextStatus := *record.Subscription
	if c.Subscription.Status == nextStatus {
		return
	}
	perm := guard.Authorize(c, models.FieldSubscription)
	if !perm.Allows(true) {
		out.BlockedFields = append(out.BlockedFields, string(models.FieldSubscription))
		return
	}
	// The consent shield is independent of lock tier: an unrelated import
	// never silently reverts an opt-in.
	if !guard.ConsentWriteAllowed(c, nextStatus, record.Source) {
		out.BlockedFields = append(out.BlockedFields, string(models.FieldSubscription))
		return
	}

	c.Subscription = models.Consent{
		Status:        nextStatus,
		Channel:       record.Source,
		Method:        record.ConsentMethod,
		EffectiveDate: now,
	}
	if nextStatus == models.SubscriptionSubscribed {
		c.SubscriptionProtected = true
	}
	out.mark(string(models.FieldSubscription))
}

// mergeAggregates applies the additive policy: contributions are added to
// the running total, never substituted for it. Duplicate contact records
// historically held independent partial totals for the same person and
// overwriting silently hides revenue. Aggregates are derived bookkeeping,
// recomputed rather than imported, so they bypass the enrichment lock below
// FULL_LOCK.
func (e *Engine) mergeAggregates(c *models.Contact, record *models.IncomingRecord, out *Outcome) {
	if record.AmountCents == 0 && record.TransactionCount == 0 {
		return
	}
	// An already-recorded sighting was already counted; re-adding it on a
	// batch re-run would double revenue.
	if c.HasSourceRecord(record.Source, record.ExternalID) {
		return
	}
	if c.LockLevel == models.LockFull {
		out.BlockedFields = append(out.BlockedFields, "aggregates")
		return
	}
	c.TotalValueCents += record.AmountCents
	c.TransactionCount += record.TransactionCount
	out.mark("aggregates")
}

// appendSourceRef records the sighting in the append-only source history.
// The immutable source_system of origin is never written here.
func (e *Engine) appendSourceRef(c *models.Contact, record *models.IncomingRecord, now time.Time, out *Outcome) {
	if c.HasSourceRecord(record.Source, record.ExternalID) {
		return
	}
	if c.LockLevel == models.LockFull {
		// The sighting itself is frozen out; the audit entry is the only
		// trace, which is the point of FULL_LOCK.
		out.BlockedFields = append(out.BlockedFields, "source_ref")
		return
	}
	c.Sources = append(c.Sources, models.SourceRef{
		Source:     record.Source,
		ExternalID: record.ExternalID,
		FirstSeen:  now,
	})
	out.mark("source_ref")
}

func (e *Engine) priority(source id.SourceSystem) int {
	return e.priorities[source]
}

func (e *Engine) outranksPrimaryEmail(c *models.Contact, source id.SourceSystem) bool {
	for _, v := range c.Emails {
		if v.Primary {
			return e.priority(source) > e.priority(v.Source)
		}
	}
	return true
}

func (e *Engine) outranksPrimaryPhone(c *models.Contact, source id.SourceSystem) bool {
	for _, v := range c.Phones {
		if v.Primary {
			return e.priority(source) > e.priority(v.Source)
		}
	}
	return true
}

func (e *Engine) outranksPrimaryAddress(c *models.Contact, source id.SourceSystem) bool {
	for _, v := range c.Addresses {
		if v.Primary {
			return e.priority(source) > e.priority(v.Source)
		}
	}
	return true
}

func (o *Outcome) mark(field string) {
	o.ChangedFields = append(o.ChangedFields, field)
	o.Changed = true
}

func hasEmail(c *models.Contact, email string) bool {
	key := identity.NormalizeEmail(email)
	for _, e := range c.Emails {
		if identity.NormalizeEmail(e.Address) == key {
			return true
		}
	}
	return false
}

func hasPhone(c *models.Contact, phone string) bool {
	key := identity.NormalizePhone(phone)
	for _, p := range c.Phones {
		if identity.NormalizePhone(p.Number) == key {
			return true
		}
	}
	return false
}

func hasAddress(c *models.Contact, next models.PostalAddress) bool {
	for _, a := range c.Addresses {
		if identity.NormalizeName(a.Street) == identity.NormalizeName(next.Street) &&
			identity.NormalizeName(a.City) == identity.NormalizeName(next.City) &&
			identity.NormalizePhone(a.PostalCode) == identity.NormalizePhone(next.PostalCode) {
			return true
		}
	}
	return false
}

// recomputeQuality refreshes the derived quality scores after a merge.
func recomputeQuality(c *models.Contact) {
	if addr, ok := c.PrimaryAddress(); ok {
		c.AddressQuality = score.AddressCompleteness(addr)
	} else {
		c.AddressQuality = 0
	}

	q := 0
	if len(c.Emails) > 0 {
		q += 30
	}
	if len(c.Phones) > 0 {
		q += 20
	}
	if c.FullName() != "" {
		q += 20
	}
	q += c.AddressQuality * 15 / 100
	// Multi-source corroboration is worth more than any single field.
	switch {
	case c.DistinctSources() >= 3:
		q += 15
	case c.DistinctSources() == 2:
		q += 10
	}
	c.QualityScore = q
}
