package shim

import (
	"context"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/types"
)

// Executor is the function pkg/remoteentry exposes; shim depends on this
// narrow signature rather than importing pkg/remoteentry directly, since
// pkg/remoteentry in turn depends on pkg/memokey and pkg/serializer, not
// on any particular dispatch backend.
type Executor func(ctx context.Context, store blobstore.Store, memoURI types.MemoURI, writerID string) (types.ResultMetadata, error)

// InProcess runs RemoteEntry.Execute in a goroutine within the calling
// process — the fast path for single-process workloads, typically paired
// with leasing disabled entirely (lease_ttl_seconds < 0).
type InProcess struct {
	store    blobstore.Store
	execute  Executor
}

// NewInProcess constructs an InProcess shim backed by store, invoking
// execute for every dispatched call.
func NewInProcess(store blobstore.Store, execute Executor) *InProcess {
	return &InProcess{store: store, execute: execute}
}

func (s *InProcess) Name() string { return "inprocess" }

func (s *InProcess) Dispatch(ctx context.Context, memoURI types.MemoURI, writerID string) (PFuture, error) {
	future, resolve := NewChannelFuture()
	go func() {
		metadata, err := s.execute(ctx, s.store, memoURI, writerID)
		resolve(metadata, err)
	}()
	return future, nil
}
