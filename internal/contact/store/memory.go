package store

import (
	"context"
	"sync"
	"time"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/sentinel"
)

// InMemory keeps the engine testable without a database. It intentionally
// favors clarity over performance.
type InMemory struct {
	mu       sync.RWMutex
	contacts map[id.ContactID]*models.Contact
	// refs maps "source\x00external_id" to the owning contact, enforcing the
	// same uniqueness constraint the postgres schema carries.
	refs map[string]id.ContactID
}

// NewInMemory returns an empty in-memory contact store.
func NewInMemory() *InMemory {
	return &InMemory{
		contacts: make(map[id.ContactID]*models.Contact),
		refs:     make(map[string]id.ContactID),
	}
}

func refKey(source id.SourceSystem, externalID string) string {
	return string(source) + "\x00" + externalID
}

func (s *InMemory) Create(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contacts[contact.ID]; exists {
		return sentinel.ErrConflict
	}
	if err := s.checkRefsLocked(contact); err != nil {
		return err
	}
	s.registerRefsLocked(contact)
	s.contacts[contact.ID] = contact.Clone()
	return nil
}

func (s *InMemory) Update(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contacts[contact.ID]; !exists {
		return sentinel.ErrNotFound
	}
	if err := s.checkRefsLocked(contact); err != nil {
		return err
	}
	s.registerRefsLocked(contact)
	s.contacts[contact.ID] = contact.Clone()
	return nil
}

// checkRefsLocked rejects any source ref already owned by another contact.
func (s *InMemory) checkRefsLocked(contact *models.Contact) error {
	for _, ref := range contact.Sources {
		owner, ok := s.refs[refKey(ref.Source, ref.ExternalID)]
		if ok && owner != contact.ID {
			return sentinel.ErrDuplicate
		}
	}
	return nil
}

func (s *InMemory) registerRefsLocked(contact *models.Contact) {
	for _, ref := range contact.Sources {
		s.refs[refKey(ref.Source, ref.ExternalID)] = contact.ID
	}
}

func (s *InMemory) FindByID(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.contacts[contactID]; ok {
		return c.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindBySourceRef(_ context.Context, source id.SourceSystem, externalID string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.refs[refKey(source, externalID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c, exists := s.contacts[owner]; exists {
		return c.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListActive(_ context.Context) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if !c.IsTombstoned() {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) SoftDelete(_ context.Context, contactID id.ContactID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.DeletedAt == nil {
		t := at
		c.DeletedAt = &t
		c.UpdatedAt = at
	}
	return nil
}
