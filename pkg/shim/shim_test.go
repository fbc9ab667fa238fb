package shim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/types"
)

func TestInProcessDispatchResolvesViaExecutor(t *testing.T) {
	store, err := blobstore.Open("file://" + t.TempDir())
	require.NoError(t, err)

	called := make(chan struct{})
	executor := func(ctx context.Context, s blobstore.Store, memoURI types.MemoURI, writerID string) (types.ResultMetadata, error) {
		close(called)
		return types.ResultMetadata{ExitStatus: "ok"}, nil
	}

	s := NewInProcess(store, executor)
	assert.Equal(t, "inprocess", s.Name())

	future, err := s.Dispatch(context.Background(), types.MemoURI("mops2-mpf/foo"), "writer-a")
	require.NoError(t, err)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("executor was not invoked")
	}

	metadata, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", metadata.ExitStatus)
}

func TestResolvedFutureReturnsImmediately(t *testing.T) {
	future := Resolved(types.ResultMetadata{ExitStatus: "ok"}, nil)
	metadata, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", metadata.ExitStatus)
}

func TestChannelFutureWaitsForResolve(t *testing.T) {
	future, resolve := NewChannelFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		resolve(types.ResultMetadata{ExitStatus: "ok"}, nil)
	}()

	metadata, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", metadata.ExitStatus)
}

func TestChannelFutureRespectsContextCancellation(t *testing.T) {
	future, _ := NewChannelFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := future.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelectAgentPicksLeastLoaded(t *testing.T) {
	agents := []AgentStatus{
		{ID: "a1", Ready: true, InFlightCalls: 3},
		{ID: "a2", Ready: true, InFlightCalls: 1},
		{ID: "a3", Ready: false, InFlightCalls: 0},
	}
	assert.Equal(t, "a2", SelectAgent(agents))
}

func TestSelectAgentReturnsEmptyWhenNoneReady(t *testing.T) {
	agents := []AgentStatus{{ID: "a1", Ready: false}}
	assert.Equal(t, "", SelectAgent(agents))
}
