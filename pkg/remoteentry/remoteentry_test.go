package remoteentry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/memokey"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

func newTestStore(t *testing.T) blobstore.Store {
	t.Helper()
	store, err := blobstore.Open("file://" + t.TempDir())
	require.NoError(t, err)
	return store
}

func putThunk(t *testing.T, store blobstore.Store, memoURI types.MemoURI, thunk types.Thunk) {
	t.Helper()
	data, err := serializer.EncodeValue("invocation", thunk)
	require.NoError(t, err)
	_, err = store.Put(context.Background(), string(memoURI)+"/invocation", bytes.NewReader(data), "application/octet-stream")
	require.NoError(t, err)
}

func encodeArg(t *testing.T, v any) []byte {
	t.Helper()
	data, err := serializer.EncodeValue("arg", v)
	require.NoError(t, err)
	return data
}

func TestExecuteResolvesSuccessfulCall(t *testing.T) {
	store := newTestStore(t)
	memoURI := types.MemoURI("mops2-mpf/pipelines.math--add/add-v1/able-badge")

	memokey.Register(memokey.Registration{
		FuncID: "pipelines.math--add",
		Fn:     func(a, b int) int { return a + b },
	})

	thunk := types.Thunk{
		FuncRef: "pipelines.math--add",
		Args:    [][]byte{encodeArg(t, 2), encodeArg(t, 3)},
	}
	putThunk(t, store, memoURI, thunk)

	l := lease.NewBlobLease(store, time.Millisecond)
	_, granted, err := l.TryAcquire(context.Background(), memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	metadata, err := Execute(context.Background(), store, memoURI, "writer-a", Config{Lease: l, LeaseTTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "ok", metadata.ExitStatus)
	assert.NotEmpty(t, metadata.RunID)

	rc, _, err := store.Get(context.Background(), fmt.Sprintf("%s/%s/%s", memoURI, types.ControlKindResult, metadata.RunID))
	require.NoError(t, err)
	defer rc.Close()
}

func TestExecuteCapturesReturnedError(t *testing.T) {
	store := newTestStore(t)
	memoURI := types.MemoURI("mops2-mpf/pipelines.math--fail/fail-v1/able-badge")

	memokey.Register(memokey.Registration{
		FuncID: "pipelines.math--fail",
		Fn:     func() (int, error) { return 0, errors.New("boom") },
	})

	thunk := types.Thunk{FuncRef: "pipelines.math--fail"}
	putThunk(t, store, memoURI, thunk)

	l := lease.NewBlobLease(store, time.Millisecond)
	_, granted, err := l.TryAcquire(context.Background(), memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	metadata, err := Execute(context.Background(), store, memoURI, "writer-a", Config{Lease: l, LeaseTTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "exception", metadata.ExitStatus)
}

func TestExecuteCapturesPanicAsException(t *testing.T) {
	store := newTestStore(t)
	memoURI := types.MemoURI("mops2-mpf/pipelines.math--panic/panic-v1/able-badge")

	memokey.Register(memokey.Registration{
		FuncID: "pipelines.math--panic",
		Fn:     func() int { panic("kaboom") },
	})

	thunk := types.Thunk{FuncRef: "pipelines.math--panic"}
	putThunk(t, store, memoURI, thunk)

	l := lease.NewBlobLease(store, time.Millisecond)
	_, granted, err := l.TryAcquire(context.Background(), memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	metadata, err := Execute(context.Background(), store, memoURI, "writer-a", Config{Lease: l, LeaseTTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "exception", metadata.ExitStatus)
}

func TestExecuteRedirectsLargeObjectResult(t *testing.T) {
	store := newTestStore(t)
	memoURI := types.MemoURI("mops2-mpf/pipelines.math--bigframe/bigframe-v1/able-badge")

	body := bytes.Repeat([]byte("x"), 4096)
	memokey.Register(memokey.Registration{
		FuncID: "pipelines.math--bigframe",
		Fn: func() types.LargeObjectRef {
			return types.LargeObjectRef{LogicalName: "frame.parquet", Bytes: body}
		},
	})

	thunk := types.Thunk{FuncRef: "pipelines.math--bigframe"}
	putThunk(t, store, memoURI, thunk)

	l := lease.NewBlobLease(store, time.Millisecond)
	_, granted, err := l.TryAcquire(context.Background(), memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	metadata, err := Execute(context.Background(), store, memoURI, "writer-a", Config{Lease: l, LeaseTTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "ok", metadata.ExitStatus)

	rc, _, err := store.Get(context.Background(), fmt.Sprintf("%s/%s/%s", memoURI, types.ControlKindResult, metadata.RunID))
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()

	env, err := serializer.DecodeEnvelope(data)
	require.NoError(t, err)
	require.Len(t, env.Sources, 1)
	assert.Equal(t, int64(len(body)), env.Sources[0].Size)
	assert.NotContains(t, string(env.Payload), string(body), "the large object's bytes must not ride along inline")

	uploaded, _, err := store.Get(context.Background(), env.Sources[0].URI)
	require.NoError(t, err)
	defer uploaded.Close()
	uploadedBytes, err := io.ReadAll(uploaded)
	require.NoError(t, err)
	assert.Equal(t, body, uploadedBytes)
}

func TestExecuteRejectsStolenLock(t *testing.T) {
	store := newTestStore(t)
	memoURI := types.MemoURI("mops2-mpf/pipelines.math--add/add-v1/able-badge")

	l := lease.NewBlobLease(store, time.Millisecond)
	_, granted, err := l.TryAcquire(context.Background(), memoURI, "writer-b", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	_, err = Execute(context.Background(), store, memoURI, "writer-a", Config{Lease: l, LeaseTTL: time.Minute})
	require.Error(t, err)
	var stolen *types.LockWasStolen
	assert.ErrorAs(t, err, &stolen)
}
