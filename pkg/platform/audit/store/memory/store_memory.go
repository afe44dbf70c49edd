package memory

import (
	"context"
	"sync"

	id "coalesce/pkg/domain"
	audit "coalesce/pkg/platform/audit"
)

// InMemoryStore holds audit entries for tests and single-process runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	byContact map[id.ContactID][]audit.Entry
	byBatch   map[id.BatchID][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byContact: make(map[id.ContactID][]audit.Entry),
		byBatch:   make(map[id.BatchID][]audit.Entry),
	}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byContact = make(map[id.ContactID][]audit.Entry)
	s.byBatch = make(map[id.BatchID][]audit.Entry)
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !entry.ContactID.IsNil() {
		s.byContact[entry.ContactID] = append(s.byContact[entry.ContactID], entry)
	}
	if !entry.BatchID.IsNil() {
		s.byBatch[entry.BatchID] = append(s.byBatch[entry.BatchID], entry)
	}
	return nil
}

func (s *InMemoryStore) ListByContact(_ context.Context, contactID id.ContactID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.byContact[contactID]...), nil
}

func (s *InMemoryStore) ListByBatch(_ context.Context, batchID id.BatchID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.byBatch[batchID]...), nil
}
