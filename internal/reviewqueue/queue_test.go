package reviewqueue

import (
	"context"
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalesce/internal/score"
	id "coalesce/pkg/domain"
)

func TestCSVQueueWritesHeaderAndRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	q, err := NewCSV(dir)
	require.NoError(t, err)
	defer q.Close()

	batchID := id.NewBatchID()
	candidate := id.NewContactID()
	other := id.NewContactID()

	require.NoError(t, q.Push(ctx, Item{
		BatchID:      batchID,
		Source:       id.SourceTicketing,
		ExternalID:   "t-1",
		CandidateIDs: []id.ContactID{candidate, other},
		Tier:         score.TierNeedsReview,
		Reason:       "shared phone, different people",
	}))
	require.NoError(t, q.Push(ctx, Item{
		BatchID:    batchID,
		Source:     id.SourceLegacyCRM,
		ExternalID: "l-9",
		Tier:       score.TierLow,
		Reason:     "name-only match",
	}))

	f, err := os.Open(q.Path(batchID))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"batch_id", "source", "external_id", "candidate_contact_ids", "tier", "reason"}, rows[0])
	assert.Equal(t, batchID.String(), rows[1][0])
	assert.Equal(t, "t-1", rows[1][2])
	assert.Equal(t, candidate.String()+";"+other.String(), rows[1][3])
	assert.Equal(t, string(score.TierNeedsReview), rows[1][4])
	assert.Equal(t, "l-9", rows[2][2])
	assert.Empty(t, rows[2][3], "no candidates is a valid row")
}

func TestCSVQueueOneFilePerBatch(t *testing.T) {
	ctx := context.Background()
	q, err := NewCSV(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	first := id.NewBatchID()
	second := id.NewBatchID()
	require.NoError(t, q.Push(ctx, Item{BatchID: first, Source: id.SourceTicketing, ExternalID: "t-1", Tier: score.TierLow}))
	require.NoError(t, q.Push(ctx, Item{BatchID: second, Source: id.SourceTicketing, ExternalID: "t-2", Tier: score.TierLow}))

	assert.NotEqual(t, q.Path(first), q.Path(second))
	for _, batchID := range []id.BatchID{first, second} {
		_, err := os.Stat(q.Path(batchID))
		assert.NoError(t, err)
	}
}

func TestMemoryQueueCollectsItems(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	require.NoError(t, q.Push(ctx, Item{Source: id.SourceTicketing, ExternalID: "t-1", Tier: score.TierLow}))
	require.NoError(t, q.Push(ctx, Item{Source: id.SourceTicketing, ExternalID: "t-2", Tier: score.TierLow}))

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "t-1", items[0].ExternalID)

	// Items returns a copy; mutating it does not reach the queue.
	items[0].ExternalID = "mangled"
	assert.Equal(t, "t-1", q.Items()[0].ExternalID)
}
