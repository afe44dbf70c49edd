// Package store persists canonical contacts. Stores are interface-driven so
// the engine and its tests run against the in-memory implementation while
// production runs PostgreSQL, without rewiring business code.
package store

import (
	"context"
	"time"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
)

// ContactStore is the persistence contract for contacts.
//
// Implementations must enforce a uniqueness constraint on
// (source_system, external_id) across all contacts: registering a source ref
// that already belongs to a different contact fails with
// sentinel.ErrDuplicate. That constraint is what makes batch re-runs
// idempotent.
type ContactStore interface {
	// Create persists a new contact and registers its source refs.
	Create(ctx context.Context, contact *models.Contact) error

	// Update replaces the stored contact wholesale and registers any new
	// source refs. Callers pass a fully merged contact; partial updates are
	// not expressible, which is what keeps merges atomic.
	Update(ctx context.Context, contact *models.Contact) error

	// FindByID returns the contact or sentinel.ErrNotFound. Tombstoned
	// contacts are still returned; audit consumers need them.
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)

	// FindBySourceRef resolves (source, external id) to the owning contact,
	// or sentinel.ErrNotFound. The pipeline's idempotency fast path.
	FindBySourceRef(ctx context.Context, source id.SourceSystem, externalID string) (*models.Contact, error)

	// ListActive returns every non-tombstoned contact, for index rebuilds.
	ListActive(ctx context.Context) ([]*models.Contact, error)

	// SoftDelete tombstones a contact, preserving it for the audit trail.
	SoftDelete(ctx context.Context, contactID id.ContactID, at time.Time) error
}
