package runner

import (
	"context"

	"github.com/cuemby/mpr/pkg/types"
)

// Future is what Submit returns to a caller: the eventual outcome of one
// call's protocol run, mirroring shim.PFuture at the application boundary
// rather than the dispatch boundary.
type Future struct {
	done     chan struct{}
	value    []byte
	metadata types.ResultMetadata
	err      error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(value []byte, metadata types.ResultMetadata, err error) {
	f.value = value
	f.metadata = metadata
	f.err = err
	close(f.done)
}

// Wait blocks until the call resolves, the context is canceled, or the
// caller otherwise gives up. A canceled ctx does not stop the underlying
// protocol run — another caller awaiting the same memo URI may still be
// waiting on it, and a dispatched call can't be safely aborted mid-flight.
func (f *Future) Wait(ctx context.Context) ([]byte, types.ResultMetadata, error) {
	select {
	case <-f.done:
		return f.value, f.metadata, f.err
	case <-ctx.Done():
		return nil, types.ResultMetadata{}, ctx.Err()
	}
}

// Done reports whether the call has resolved without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
