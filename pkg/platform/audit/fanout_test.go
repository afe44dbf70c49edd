package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "coalesce/pkg/domain"
)

type recordingStore struct {
	entries []Entry
	err     error
}

func (s *recordingStore) Append(_ context.Context, entry Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingStore) ListByContact(context.Context, id.ContactID) ([]Entry, error) {
	return s.entries, nil
}

func (s *recordingStore) ListByBatch(context.Context, id.BatchID) ([]Entry, error) {
	return s.entries, nil
}

func TestFanoutAppendsThenEmits(t *testing.T) {
	ctx := context.Background()
	next := &recordingStore{}
	f, outbox := NewFanout(next, 4)

	entry := Entry{Decision: DecisionCreated, Actor: ImportActor(id.SourceMembership)}
	require.NoError(t, f.Append(ctx, entry))

	require.Len(t, next.entries, 1, "durable append happens first")
	select {
	case got := <-outbox:
		assert.Equal(t, DecisionCreated, got.Decision)
	default:
		t.Fatal("entry never reached the outbox")
	}
}

func TestFanoutDurableFailureSkipsOutbox(t *testing.T) {
	ctx := context.Background()
	next := &recordingStore{err: errors.New("store down")}
	f, outbox := NewFanout(next, 4)

	err := f.Append(ctx, Entry{Decision: DecisionCreated})
	require.Error(t, err)

	select {
	case <-outbox:
		t.Fatal("an entry that was never durably written must not be exported")
	default:
	}
}

func TestFanoutFullOutboxDropsCopyNotWrite(t *testing.T) {
	ctx := context.Background()
	next := &recordingStore{}
	f, _ := NewFanout(next, 1)

	require.NoError(t, f.Append(ctx, Entry{Decision: DecisionCreated}))
	// Outbox now full; the durable write must still succeed.
	require.NoError(t, f.Append(ctx, Entry{Decision: DecisionMatched}))
	assert.Len(t, next.entries, 2)
}
