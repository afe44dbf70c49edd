package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "coalesce/pkg/domain"
)

func TestMemoryLockExclusive(t *testing.T) {
	locker := NewMemory()
	contactID := id.NewContactID()

	release, err := locker.Acquire(context.Background(), contactID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := locker.Acquire(context.Background(), contactID)
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired while lock was held")
	case <-time.After(100 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never got the lock after release")
	}
}

func TestMemoryLockContextCancel(t *testing.T) {
	locker := NewMemory()
	contactID := id.NewContactID()

	release, err := locker.Acquire(context.Background(), contactID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, contactID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLockDisjointContacts(t *testing.T) {
	locker := NewMemory()

	releaseA, err := locker.Acquire(context.Background(), id.NewContactID())
	require.NoError(t, err)
	defer releaseA()

	// A held lock on one contact must not block another.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, id.NewContactID())
	require.NoError(t, err)
	releaseB()
}

func TestMemoryLockWaitHookFiresOnContention(t *testing.T) {
	locker := NewMemory()
	var waits atomic.Int64
	locker.OnWait(func() { waits.Add(1) })
	contactID := id.NewContactID()

	release, err := locker.Acquire(context.Background(), contactID)
	require.NoError(t, err)
	assert.Zero(t, waits.Load(), "uncontended acquire is not a wait")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, contactID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, waits.Load(), "a blocked acquire counts exactly once")

	release()
}

func TestMemoryLockReacquireAfterRelease(t *testing.T) {
	locker := NewMemory()
	contactID := id.NewContactID()

	for range 3 {
		release, err := locker.Acquire(context.Background(), contactID)
		require.NoError(t, err)
		release()
	}
}
