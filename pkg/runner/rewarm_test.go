package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/memokey"
)

func TestRewarmRunsEveryEntryInBatches(t *testing.T) {
	store := newTestStore(t)
	r, sh := newTestRunner(t, store)

	memokey.Register(memokey.Registration{
		FuncID: "test.runner--rewarm-a",
		Fn:     func() int { return 1 },
	})
	memokey.Register(memokey.Registration{
		FuncID: "test.runner--rewarm-b",
		Fn:     func() int { return 2 },
	})

	entries := []RewarmEntry{
		{Name: "a", CallInput: CallInput{FuncID: "test.runner--rewarm-a", PipelineID: "pipe-rewarm"}},
		{Name: "b", CallInput: CallInput{FuncID: "test.runner--rewarm-b", PipelineID: "pipe-rewarm"}},
	}

	results := r.Rewarm(context.Background(), entries, RewarmConfig{Parallelism: 1, Delay: time.Millisecond})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.NotEmpty(t, res.Value)
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&sh.dispatches))
}

func TestRewarmReportsPerEntryFailures(t *testing.T) {
	store := newTestStore(t)
	r, _ := newTestRunner(t, store)

	memokey.Register(memokey.Registration{
		FuncID: "test.runner--rewarm-fail",
		Fn:     func() (int, error) { return 0, assert.AnError },
	})

	entries := []RewarmEntry{
		{Name: "broken", CallInput: CallInput{FuncID: "test.runner--rewarm-fail", PipelineID: "pipe-rewarm"}},
	}

	results := r.Rewarm(context.Background(), entries, RewarmConfig{Parallelism: 2})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
