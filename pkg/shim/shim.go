// Package shim defines the dispatch contract between pkg/runner and
// wherever a call actually executes. The shim owns placement — pkg/runner
// never decides which worker, container, or node runs a call; it only
// asks a Shim to dispatch and waits for a result.
package shim

import (
	"context"

	"github.com/cuemby/mpr/pkg/types"
)

// Shim dispatches a previously-written invocation to a remote entry point
// and reports its outcome. Implementations may run synchronously
// (blocking Dispatch until the result is known) or asynchronously
// (returning a PFuture immediately); the Runner treats both uniformly
// through the PFuture interface.
type Shim interface {
	// Dispatch hands memoURI off for execution under writerID, the lease
	// owner the remote side must present when writing its result.
	Dispatch(ctx context.Context, memoURI types.MemoURI, writerID string) (PFuture, error)

	// Name identifies the backend for logging and metrics.
	Name() string
}

// PFuture represents a dispatched call's eventual outcome. It mirrors
// the spec's "submit analog" at the shim boundary — a synchronous shim
// returns an already-resolved PFuture, an asynchronous one resolves later.
type PFuture interface {
	// Wait blocks until the dispatched call resolves or ctx is canceled.
	Wait(ctx context.Context) (types.ResultMetadata, error)
}

// resolvedFuture is a PFuture that is already done — the shape a
// synchronous backend returns.
type resolvedFuture struct {
	metadata types.ResultMetadata
	err      error
}

func Resolved(metadata types.ResultMetadata, err error) PFuture {
	return resolvedFuture{metadata: metadata, err: err}
}

func (f resolvedFuture) Wait(ctx context.Context) (types.ResultMetadata, error) {
	return f.metadata, f.err
}

// channelFuture is a PFuture backed by a channel, the shape an
// asynchronous backend returns while the call runs elsewhere.
type channelFuture struct {
	done chan struct{}
	metadata types.ResultMetadata
	err      error
}

// NewChannelFuture returns a PFuture plus the resolve function an
// asynchronous backend calls exactly once when the outcome is known.
func NewChannelFuture() (PFuture, func(types.ResultMetadata, error)) {
	f := &channelFuture{done: make(chan struct{})}
	resolve := func(metadata types.ResultMetadata, err error) {
		f.metadata = metadata
		f.err = err
		close(f.done)
	}
	return f, resolve
}

func (f *channelFuture) Wait(ctx context.Context) (types.ResultMetadata, error) {
	select {
	case <-f.done:
		return f.metadata, f.err
	case <-ctx.Done():
		return types.ResultMetadata{}, ctx.Err()
	}
}
