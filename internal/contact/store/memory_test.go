package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/sentinel"
)

func newContact(ext string) *models.Contact {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return &models.Contact{
		ID:           id.NewContactID(),
		FirstName:    "Sarah",
		LastName:     "Chen",
		SourceSystem: id.SourceMembership,
		LockLevel:    models.LockUnlocked,
		Sources: []models.SourceRef{
			{Source: id.SourceMembership, ExternalID: ext, FirstSeen: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	c := newContact("m-1")

	require.NoError(t, s.Create(ctx, c))

	byID, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byID.ID)

	byRef, err := s.FindBySourceRef(ctx, id.SourceMembership, "m-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byRef.ID)

	_, err = s.FindByID(ctx, id.NewContactID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryRejectsDuplicateSourceRef(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newContact("m-1")))

	err := s.Create(ctx, newContact("m-1"))
	assert.ErrorIs(t, err, sentinel.ErrDuplicate, "two contacts may not own one (source, external_id)")

	// The same uniqueness applies to updates that would steal a ref.
	other := newContact("m-2")
	require.NoError(t, s.Create(ctx, other))
	other.Sources = append(other.Sources,
		models.SourceRef{Source: id.SourceMembership, ExternalID: "m-1", FirstSeen: time.Now()})
	assert.ErrorIs(t, s.Update(ctx, other), sentinel.ErrDuplicate)
}

func TestInMemoryReturnsClones(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	c := newContact("m-1")
	require.NoError(t, s.Create(ctx, c))

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	got.FirstName = "Mangled"
	got.Sources[0].ExternalID = "hijacked"

	fresh, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sarah", fresh.FirstName, "callers must not reach the stored copy")
	assert.Equal(t, "m-1", fresh.Sources[0].ExternalID)
}

func TestInMemoryUpdateUnknownContact(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	assert.ErrorIs(t, s.Update(ctx, newContact("m-1")), sentinel.ErrNotFound)
}

func TestInMemorySoftDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	c := newContact("m-1")
	require.NoError(t, s.Create(ctx, c))

	at := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SoftDelete(ctx, c.ID, at))

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTombstoned())
	assert.Equal(t, at, *got.DeletedAt)

	// Idempotent: the original tombstone time survives a second call.
	require.NoError(t, s.SoftDelete(ctx, c.ID, at.Add(time.Hour)))
	again, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, at, *again.DeletedAt)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Tombstoned contacts keep their refs; the history stays resolvable.
	byRef, err := s.FindBySourceRef(ctx, id.SourceMembership, "m-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byRef.ID)
}

func TestInMemoryListActive(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newContact("m-1")))
	require.NoError(t, s.Create(ctx, newContact("m-2")))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
