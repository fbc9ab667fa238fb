package lease

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/types"
)

// Scheduler coalesces heartbeats for every in-flight call sharing a
// process, rather than each call running its own ticker. pkg/runner
// registers a memo URI when it starts co-owning a lease and unregisters
// it once the call resolves or the lease is released.
type Scheduler struct {
	lease Lease
	ttl   time.Duration

	mu      sync.Mutex
	entries map[types.MemoURI]string // memoURI -> writerID
	stolen  map[types.MemoURI]chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler starts a background loop heartbeating every registered
// memo URI at HeartbeatInterval(ttl).
func NewScheduler(l Lease, ttl time.Duration) *Scheduler {
	s := &Scheduler{
		lease:   l,
		ttl:     ttl,
		entries: make(map[types.MemoURI]string),
		stolen:  make(map[types.MemoURI]chan struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Register starts maintaining memoURI's lease as writerID. The returned
// channel closes if the lease is later stolen by another writer.
func (s *Scheduler) Register(memoURI types.MemoURI, writerID string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memoURI] = writerID
	ch := make(chan struct{})
	s.stolen[memoURI] = ch
	return ch
}

// Unregister stops maintaining memoURI's lease; it does not release it —
// callers release explicitly once they've finished writing a result.
func (s *Scheduler) Unregister(memoURI types.MemoURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memoURI)
	delete(s.stolen, memoURI)
}

func (s *Scheduler) run() {
	defer close(s.doneCh)
	interval := HeartbeatInterval(s.ttl)
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.heartbeatAll()
		}
	}
}

func (s *Scheduler) heartbeatAll() {
	s.mu.Lock()
	snapshot := make(map[types.MemoURI]string, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for memoURI, writerID := range snapshot {
		if err := s.lease.Maintain(ctx, memoURI, writerID, s.ttl); err != nil {
			if stolenErr, ok := err.(*types.LockWasStolen); ok {
				log.Logger.Warn().
					Str("memo_uri", string(memoURI)).
					Str("new_writer", stolenErr.NewWriter).
					Msg("lease stolen during heartbeat")
				s.notifyStolen(memoURI)
				continue
			}
			log.Logger.Warn().Err(err).Str("memo_uri", string(memoURI)).Msg("lease heartbeat failed")
		}
	}
}

func (s *Scheduler) notifyStolen(memoURI types.MemoURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.stolen[memoURI]; ok {
		close(ch)
		delete(s.stolen, memoURI)
	}
	delete(s.entries, memoURI)
}

// Stop halts the heartbeat loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}
