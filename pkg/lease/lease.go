// Package lease implements time-boxed, last-writer-wins ownership of a
// memo URI for the duration of dispatch. The default driver, BlobLease, is
// intentionally best-effort — mpr does not promise strong mutual exclusion
// by default. Operators who need stricter guarantees across multiple
// orchestrator replicas can opt into RaftLease instead.
package lease

import (
	"context"
	"time"

	"github.com/cuemby/mpr/pkg/types"
)

// Lease is the interface pkg/runner depends on; BlobLease and RaftLease
// both satisfy it so the Runner is agnostic to which is configured.
type Lease interface {
	// TryAcquire attempts to become the writer for memoURI. It returns
	// the lease record and true on success, or the current (possibly
	// stale) lease and false if another writer still holds it.
	TryAcquire(ctx context.Context, memoURI types.MemoURI, writerID string, ttl time.Duration) (types.Lease, bool, error)

	// Maintain renews the lease's TTL, keeping writerID the recorded
	// owner. It returns *types.LockWasStolen if another writer has since
	// taken over.
	Maintain(ctx context.Context, memoURI types.MemoURI, writerID string, ttl time.Duration) error

	// Release gives up ownership of memoURI if writerID is still the
	// recorded owner; otherwise it is a no-op (another writer already
	// took over).
	Release(ctx context.Context, memoURI types.MemoURI, writerID string) error

	// Current returns the lease currently recorded for memoURI, if any.
	Current(ctx context.Context, memoURI types.MemoURI) (types.Lease, bool, error)
}

// DefaultConfirmDelay is how long TryAcquire waits after writing a
// tentative lock before re-reading it to confirm no concurrent writer
// raced it — comfortably larger than typical blob-store read-after-write
// latency, small enough not to dominate cold-call latency.
const DefaultConfirmDelay = 150 * time.Millisecond

// HeartbeatInterval returns the default heartbeat period for a given TTL:
// ttl/4, comfortably under the spec's "< ttl/3" requirement.
func HeartbeatInterval(ttl time.Duration) time.Duration {
	return ttl / 4
}
