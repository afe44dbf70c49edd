package identity

import (
	"context"
	"sync"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
)

// Fragment is one identity value to look up, tagged with its kind so the
// matcher knows which field agreed.
type Fragment struct {
	Kind  FragmentKind
	Value string
}

// FragmentKind names the identity field a lookup key came from.
type FragmentKind string

const (
	FragmentEmail       FragmentKind = "email"
	FragmentPhone       FragmentKind = "phone"
	FragmentPhoneSuffix FragmentKind = "phone_suffix"
	FragmentName        FragmentKind = "name"
)

// Index holds the in-memory lookup structures over the contact store. Every
// successful create or merge updates it synchronously before the pipeline
// moves on, so a later record in the same batch can match a contact created
// moments earlier. False positives are fine here (scoring resolves them
// downstream); false negatives are not.
type Index struct {
	mu            sync.RWMutex
	byEmail       map[string][]id.ContactID
	byPhone       map[string][]id.ContactID
	byPhoneSuffix map[string][]id.ContactID
	byName        map[string][]id.ContactID
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byEmail:       make(map[string][]id.ContactID),
		byPhone:       make(map[string][]id.ContactID),
		byPhoneSuffix: make(map[string][]id.ContactID),
		byName:        make(map[string][]id.ContactID),
	}
}

// ContactLister is the slice of the contact store the index needs to rebuild
// itself at startup.
type ContactLister interface {
	ListActive(ctx context.Context) ([]*models.Contact, error)
}

// Rebuild loads every active contact from the store and indexes it.
func (ix *Index) Rebuild(ctx context.Context, store ContactLister) error {
	contacts, err := store.ListActive(ctx)
	if err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byEmail = make(map[string][]id.ContactID)
	ix.byPhone = make(map[string][]id.ContactID)
	ix.byPhoneSuffix = make(map[string][]id.ContactID)
	ix.byName = make(map[string][]id.ContactID)
	for _, c := range contacts {
		ix.addLocked(c)
	}
	return nil
}

// Add indexes every normalized identity value of the contact. Safe to call
// repeatedly with the same contact after each merge; keys are deduplicated.
func (ix *Index) Add(c *models.Contact) {
	if c.IsTombstoned() {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addLocked(c)
}

func (ix *Index) addLocked(c *models.Contact) {
	for _, e := range c.Emails {
		if key := NormalizeEmail(e.Address); key != "" {
			ix.byEmail[key] = appendUnique(ix.byEmail[key], c.ID)
		}
	}
	for _, p := range c.Phones {
		key := NormalizePhone(p.Number)
		if key == "" {
			continue
		}
		ix.byPhone[key] = appendUnique(ix.byPhone[key], c.ID)
		if suffix := PhoneSuffix(key); suffix != "" {
			ix.byPhoneSuffix[suffix] = appendUnique(ix.byPhoneSuffix[suffix], c.ID)
		}
	}
	if key := NormalizeName(c.FullName()); key != "" {
		ix.byName[key] = appendUnique(ix.byName[key], c.ID)
	}
}

// Remove drops the contact from every bucket. Called when a contact is
// tombstoned; its audit history survives but it must never match again.
func (ix *Index) Remove(contactID id.ContactID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for key, ids := range ix.byEmail {
		ix.byEmail[key] = removeID(ids, contactID)
	}
	for key, ids := range ix.byPhone {
		ix.byPhone[key] = removeID(ids, contactID)
	}
	for key, ids := range ix.byPhoneSuffix {
		ix.byPhoneSuffix[key] = removeID(ids, contactID)
	}
	for key, ids := range ix.byName {
		ix.byName[key] = removeID(ids, contactID)
	}
}

// Lookup returns the ordered set of contact IDs indexed under the fragment.
// Exact phone lookup falls back to the suffix bucket when the exact key
// misses, so a number stored with a country code still matches one without.
func (ix *Index) Lookup(f Fragment) []id.ContactID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	switch f.Kind {
	case FragmentEmail:
		return copyIDs(ix.byEmail[NormalizeEmail(f.Value)])
	case FragmentPhone:
		key := NormalizePhone(f.Value)
		if ids := ix.byPhone[key]; len(ids) > 0 {
			return copyIDs(ids)
		}
		if suffix := PhoneSuffix(key); suffix != "" {
			return copyIDs(ix.byPhoneSuffix[suffix])
		}
		return nil
	case FragmentPhoneSuffix:
		return copyIDs(ix.byPhoneSuffix[PhoneSuffix(NormalizePhone(f.Value))])
	case FragmentName:
		return copyIDs(ix.byName[NormalizeName(f.Value)])
	default:
		return nil
	}
}

func appendUnique(ids []id.ContactID, cid id.ContactID) []id.ContactID {
	for _, existing := range ids {
		if existing == cid {
			return ids
		}
	}
	return append(ids, cid)
}

func removeID(ids []id.ContactID, cid id.ContactID) []id.ContactID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != cid {
			out = append(out, existing)
		}
	}
	return out
}

func copyIDs(ids []id.ContactID) []id.ContactID {
	if len(ids) == 0 {
		return nil
	}
	return append([]id.ContactID(nil), ids...)
}
