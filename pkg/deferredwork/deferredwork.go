package deferredwork

import (
	"context"
	"sync"

	"github.com/cuemby/mpr/pkg/log"
)

// Queue names the three kinds of deferred work the spec calls out.
// Jobs from different queues share the same worker pool — the name is
// only for logging; dedup is by DedupKey alone, across all queues.
type Queue string

const (
	QueueUploadLargeObjects Queue = "upload_large_objects"
	QueueWriteHashrefs      Queue = "write_hashrefs"
	QueueWriteSummary       Queue = "write_summary"
)

// Job is one unit of deferred work. Fn's error is logged, never returned
// to the caller that submitted it — deferred work is best-effort by
// construction.
type Job struct {
	Queue Queue
	Fn    func(ctx context.Context) error

	// DedupKey, if non-empty, is checked against jobs already submitted
	// this process; a repeat is dropped before Fn ever runs. Content
	// hashes are the expected key for upload_large_objects and
	// write_hashrefs.
	DedupKey string
}

// Pool is a bounded pool of goroutines draining a single job channel.
// One Pool is shared across an entire process, per the concurrency
// model's "single shared DeferredWork pool and lease maintenance
// scheduler per process".
type Pool struct {
	jobs    chan Job
	workers int

	seenMu sync.Mutex
	seen   map[string]struct{}

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPool creates a pool with the given worker count. maxWorkers <= 0
// defaults to 1.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Pool{
		jobs:    make(chan Job, maxWorkers*4),
		workers: maxWorkers,
		seen:    make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the pool's workers. It is safe to call once per Pool.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := job.Fn(ctx); err != nil {
				log.Logger.Warn().Err(err).Str("queue", string(job.Queue)).Msg("deferred work job failed")
			}
		}
	}
}

// Submit enqueues job. If job.DedupKey has already been submitted this
// process, Submit drops it and returns false. Submit blocks if the pool's
// internal buffer is full — callers on the hot path should size the pool
// generously rather than rely on this backpressure.
func (p *Pool) Submit(job Job) bool {
	if job.DedupKey != "" {
		p.seenMu.Lock()
		if _, dup := p.seen[job.DedupKey]; dup {
			p.seenMu.Unlock()
			return false
		}
		p.seen[job.DedupKey] = struct{}{}
		p.seenMu.Unlock()
	}

	select {
	case p.jobs <- job:
		return true
	case <-p.stopCh:
		return false
	}
}

// Stop signals workers to exit and waits for in-flight jobs to finish.
// Queued-but-not-started jobs are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}
