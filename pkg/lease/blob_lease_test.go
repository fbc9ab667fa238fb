package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/types"
)

func newTestBlobLease(t *testing.T) *BlobLease {
	t.Helper()
	store, err := blobstore.Open("file://" + t.TempDir())
	require.NoError(t, err)
	return NewBlobLease(store, 5*time.Millisecond)
}

func TestBlobLeaseTryAcquireGrantsWhenUnheld(t *testing.T) {
	l := newTestBlobLease(t)
	ctx := context.Background()

	lease, granted, err := l.TryAcquire(ctx, types.MemoURI("mops2-mpf/foo"), "writer-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, "writer-a", lease.WriterID)
}

func TestBlobLeaseTryAcquireRefusesWhileHeldByOther(t *testing.T) {
	l := newTestBlobLease(t)
	ctx := context.Background()
	memoURI := types.MemoURI("mops2-mpf/foo")

	_, granted, err := l.TryAcquire(ctx, memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	_, granted, err = l.TryAcquire(ctx, memoURI, "writer-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestBlobLeaseTryAcquireSucceedsAfterExpiry(t *testing.T) {
	l := newTestBlobLease(t)
	ctx := context.Background()
	memoURI := types.MemoURI("mops2-mpf/foo")

	_, granted, err := l.TryAcquire(ctx, memoURI, "writer-a", time.Millisecond)
	require.NoError(t, err)
	require.True(t, granted)

	time.Sleep(10 * time.Millisecond)

	_, granted, err = l.TryAcquire(ctx, memoURI, "writer-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestBlobLeaseMaintainDetectsTheft(t *testing.T) {
	l := newTestBlobLease(t)
	ctx := context.Background()
	memoURI := types.MemoURI("mops2-mpf/foo")

	_, granted, err := l.TryAcquire(ctx, memoURI, "writer-a", time.Millisecond)
	require.NoError(t, err)
	require.True(t, granted)

	time.Sleep(10 * time.Millisecond)
	_, granted, err = l.TryAcquire(ctx, memoURI, "writer-b", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	err = l.Maintain(ctx, memoURI, "writer-a", time.Minute)
	var stolen *types.LockWasStolen
	assert.ErrorAs(t, err, &stolen)
	assert.Equal(t, "writer-b", stolen.NewWriter)
}

func TestBlobLeaseReleaseIsNoOpForNonOwner(t *testing.T) {
	l := newTestBlobLease(t)
	ctx := context.Background()
	memoURI := types.MemoURI("mops2-mpf/foo")

	_, granted, err := l.TryAcquire(ctx, memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, l.Release(ctx, memoURI, "writer-b"))

	current, found, err := l.Current(ctx, memoURI)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "writer-a", current.WriterID)
}
