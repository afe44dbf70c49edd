// Package match turns an incoming record into ordered, scored candidates for
// an existing contact. It only proposes; the pipeline decides.
package match

import (
	"context"
	"errors"
	"sort"

	"coalesce/internal/contact/models"
	"coalesce/internal/identity"
	"coalesce/internal/score"
	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/sentinel"
)

// Candidate is one possible existing-contact match for an incoming record.
// Transient: nothing here is persisted beyond the audit record of the
// decision made from it.
type Candidate struct {
	Contact       *models.Contact
	MatchedFields []identity.FragmentKind
	Signals       score.MatchSignals
	Result        score.MatchResult
}

// ContactFinder is the slice of the contact store the matcher needs.
type ContactFinder interface {
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
}

// Matcher queries the identity index on each identity field of a record
// independently, unions the candidates, and grades each one.
type Matcher struct {
	index *identity.Index
	store ContactFinder
}

// New creates a matcher over the given index and store.
func New(index *identity.Index, store ContactFinder) *Matcher {
	return &Matcher{index: index, store: store}
}

// Match returns candidates ordered by descending confidence. Ties break
// toward the candidate with more distinct contributing sources (more-enriched
// wins), then the most recently updated. Zero candidates means "create new".
func (m *Matcher) Match(ctx context.Context, record *models.IncomingRecord) ([]Candidate, error) {
	ids := m.candidateIDs(record)
	if len(ids) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, contactID := range ids {
		contact, err := m.store.FindByID(ctx, contactID)
		if err != nil {
			// An index entry pointing at a missing contact means the index
			// and store diverged mid-flight; skip rather than fail the
			// record, the next rebuild heals it.
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if contact.IsTombstoned() {
			continue
		}
		candidates = append(candidates, grade(contact, record))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Result.Score != b.Result.Score {
			return a.Result.Score > b.Result.Score
		}
		if as, bs := a.Contact.DistinctSources(), b.Contact.DistinctSources(); as != bs {
			return as > bs
		}
		return a.Contact.UpdatedAt.After(b.Contact.UpdatedAt)
	})
	return candidates, nil
}

// candidateIDs unions index lookups across every identity field present,
// preserving first-seen order.
func (m *Matcher) candidateIDs(record *models.IncomingRecord) []id.ContactID {
	var out []id.ContactID
	seen := make(map[id.ContactID]struct{})

	add := func(ids []id.ContactID) {
		for _, cid := range ids {
			if _, ok := seen[cid]; !ok {
				seen[cid] = struct{}{}
				out = append(out, cid)
			}
		}
	}

	if record.Email != "" {
		add(m.index.Lookup(identity.Fragment{Kind: identity.FragmentEmail, Value: record.Email}))
	}
	if record.Phone != "" {
		add(m.index.Lookup(identity.Fragment{Kind: identity.FragmentPhone, Value: record.Phone}))
	}
	if name := record.FullName(); name != "" {
		add(m.index.Lookup(identity.Fragment{Kind: identity.FragmentName, Value: name}))
	}
	return out
}

// grade computes which fields agreed between record and contact and scores
// the agreement.
func grade(contact *models.Contact, record *models.IncomingRecord) Candidate {
	var (
		signals score.MatchSignals
		fields  []identity.FragmentKind
	)

	if record.Email != "" {
		key := identity.NormalizeEmail(record.Email)
		for _, e := range contact.Emails {
			if identity.NormalizeEmail(e.Address) == key {
				signals.EmailMatched = true
				fields = append(fields, identity.FragmentEmail)
				break
			}
		}
	}

	if record.Phone != "" {
		key := identity.NormalizePhone(record.Phone)
		suffix := identity.PhoneSuffix(key)
		for _, p := range contact.Phones {
			existing := identity.NormalizePhone(p.Number)
			if existing == key {
				signals.PhoneExact = true
				fields = append(fields, identity.FragmentPhone)
				break
			}
			if suffix != "" && identity.PhoneSuffix(existing) == suffix {
				signals.PhoneSuffix = true
			}
		}
		if !signals.PhoneExact && signals.PhoneSuffix {
			fields = append(fields, identity.FragmentPhoneSuffix)
		}
	}

	recordName := identity.NormalizeName(record.FullName())
	contactName := identity.NormalizeName(contact.FullName())
	if recordName != "" && contactName != "" {
		if recordName == contactName {
			signals.NameMatched = true
			fields = append(fields, identity.FragmentName)
		} else {
			signals.NameConflict = true
		}
	}

	if record.HasPostalAddress() {
		if addr, ok := contact.PrimaryAddress(); ok {
			if addressesAgree(addr, record) {
				signals.AddressMatched = true
			}
		}
	}

	return Candidate{
		Contact:       contact,
		MatchedFields: fields,
		Signals:       signals,
		Result:        score.MatchConfidence(signals),
	}
}

// addressesAgree requires normalized street and postal code agreement; city
// and state spellings vary too much across exports to be load-bearing.
func addressesAgree(addr models.PostalAddress, record *models.IncomingRecord) bool {
	if record.Street == "" || record.PostalCode == "" {
		return false
	}
	return identity.NormalizeName(addr.Street) == identity.NormalizeName(record.Street) &&
		identity.NormalizePhone(addr.PostalCode) == identity.NormalizePhone(record.PostalCode)
}

// ambiguityMargin is how close two top scores must be to count as near-equal.
const ambiguityMargin = 10

// Ambiguous reports whether the top candidates are near-equal matches for
// different underlying people. Auto-merging in that situation corrupts the
// financial trail irreversibly, so the pipeline conflict-flags instead.
func Ambiguous(candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}
	top, second := candidates[0], candidates[1]
	if top.Result.Score < 50 {
		return false
	}
	if top.Result.Score-second.Result.Score > ambiguityMargin {
		return false
	}
	return differentPeople(top.Contact, second.Contact)
}

// differentPeople is a conservative check: candidates with disjoint emails
// and disjoint normalized names are presumed to be two real people (the
// shared-phone household case).
func differentPeople(a, b *models.Contact) bool {
	for _, ea := range a.Emails {
		for _, eb := range b.Emails {
			if identity.NormalizeEmail(ea.Address) == identity.NormalizeEmail(eb.Address) {
				return false
			}
		}
	}
	an, bn := identity.NormalizeName(a.FullName()), identity.NormalizeName(b.FullName())
	if an != "" && an == bn {
		return false
	}
	return true
}
