// Package lock serializes merges per contact. At most one merge may be in
// flight against a given contact; a second batch touching the same contact
// blocks until the first completes. There is no cross-contact locking, so
// disjoint contacts proceed independently.
package lock

import (
	"context"
	"sync"

	id "coalesce/pkg/domain"
)

// ContactLocker grants an exclusive lock on a contact ID for the duration of
// a match-to-merge sequence.
type ContactLocker interface {
	// Acquire blocks until the lock is held or ctx is done. The returned
	// release must be called exactly once.
	Acquire(ctx context.Context, contactID id.ContactID) (release func(), err error)
}

// Memory is the single-process locker: one gate channel per contact ID.
type Memory struct {
	mu     sync.Mutex
	gates  map[id.ContactID]chan struct{}
	onWait func()
}

// NewMemory returns an in-process contact locker.
func NewMemory() *Memory {
	return &Memory{gates: make(map[id.ContactID]chan struct{})}
}

// OnWait registers a callback fired once per Acquire that has to block on a
// held lock. Set before the locker is shared.
func (m *Memory) OnWait(fn func()) {
	m.onWait = fn
}

func (m *Memory) Acquire(ctx context.Context, contactID id.ContactID) (func(), error) {
	waited := false
	for {
		m.mu.Lock()
		gate, held := m.gates[contactID]
		if !held {
			m.gates[contactID] = make(chan struct{})
			m.mu.Unlock()
			return func() {
				m.mu.Lock()
				close(m.gates[contactID])
				delete(m.gates, contactID)
				m.mu.Unlock()
			}, nil
		}
		m.mu.Unlock()

		if !waited {
			waited = true
			if m.onWait != nil {
				m.onWait()
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
			// Holder released; race for the lock again.
		}
	}
}
