package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/audit"
)

func TestInMemoryStoreListsByContactAndBatch(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	batchID := id.NewBatchID()
	contactID := id.NewContactID()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, audit.Entry{
		BatchID: batchID, ContactID: contactID,
		Decision: audit.DecisionCreated, Actor: audit.ImportActor(id.SourceMembership), Timestamp: now,
	}))
	require.NoError(t, s.Append(ctx, audit.Entry{
		BatchID: batchID, ContactID: contactID,
		Decision: audit.DecisionMergeBlocked, Actor: audit.ImportActor(id.SourceTicketing), Timestamp: now.Add(time.Minute),
	}))
	// A batch-level entry with no contact: rejected record.
	require.NoError(t, s.Append(ctx, audit.Entry{
		BatchID:  batchID,
		Decision: audit.DecisionErrored, Actor: audit.ImportActor(id.SourceTicketing), Timestamp: now.Add(2 * time.Minute),
	}))

	byContact, err := s.ListByContact(ctx, contactID)
	require.NoError(t, err)
	require.Len(t, byContact, 2)
	assert.Equal(t, audit.DecisionCreated, byContact[0].Decision, "append order is preserved")

	byBatch, err := s.ListByBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Len(t, byBatch, 3, "contactless entries still land in the batch trail")

	empty, err := s.ListByContact(ctx, id.NewContactID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	contactID := id.NewContactID()

	require.NoError(t, s.Append(ctx, audit.Entry{ContactID: contactID, Decision: audit.DecisionCreated}))
	s.Clear()

	entries, err := s.ListByContact(ctx, contactID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
