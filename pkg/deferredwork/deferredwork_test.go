package deferredwork

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())
	defer pool.Stop()

	var ran int32
	done := make(chan struct{})
	pool.Submit(Job{
		Queue: QueueWriteSummary,
		Fn: func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestPoolDedupsByKey(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())
	defer pool.Stop()

	var runs int32
	job := func() Job {
		return Job{
			Queue:    QueueUploadLargeObjects,
			DedupKey: "sha256:abc",
			Fn: func(ctx context.Context) error {
				atomic.AddInt32(&runs, 1)
				return nil
			},
		}
	}

	accepted1 := pool.Submit(job())
	accepted2 := pool.Submit(job())
	assert.True(t, accepted1)
	assert.False(t, accepted2)

	// give the first job a moment to run before asserting the count.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestPoolSurvivesJobError(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())
	defer pool.Stop()

	done := make(chan struct{})
	pool.Submit(Job{
		Queue: QueueWriteHashrefs,
		Fn: func(ctx context.Context) error {
			return errors.New("write failed")
		},
	})
	pool.Submit(Job{
		Queue: QueueWriteHashrefs,
		Fn: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stalled after a failing job")
	}
}

func TestPoolStopWaitsForInFlightJobs(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())

	started := make(chan struct{})
	var finished int32
	pool.Submit(Job{
		Queue: QueueWriteSummary,
		Fn: func(ctx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&finished, 1)
			return nil
		},
	})

	<-started
	pool.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&finished))
}
