package shim

import (
	"context"
	"io"
	"path"
	"sort"
	"time"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/clusterrpc"
	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

// Cluster dispatches over clusterrpc to a pool of registered cluster
// agents instead of running the call locally, adapted from Containerd's
// async-dispatch shape: Dispatch hands the call off and returns
// immediately, and a channelFuture resolves once a result or exception
// shows up in the shared blob store. The call's argument and result
// bytes never cross the clusterrpc wire — only the memo URI and writer
// id do; whichever agent Submit placed the call on reads and writes
// directly against the same store this shim was built with.
type Cluster struct {
	client    *clusterrpc.Client
	store     blobstore.Store
	pollEvery time.Duration
}

// NewCluster builds a Cluster shim. client talks to a pkg/clustermanager
// server; store must be the same blob store every registered agent reads
// results and invocations from.
func NewCluster(client *clusterrpc.Client, store blobstore.Store) *Cluster {
	return &Cluster{client: client, store: store, pollEvery: 500 * time.Millisecond}
}

func (s *Cluster) Name() string { return "cluster" }

func (s *Cluster) Dispatch(ctx context.Context, memoURI types.MemoURI, writerID string) (PFuture, error) {
	resp, err := s.client.Submit(ctx, &clusterrpc.SubmitRequest{MemoURI: string(memoURI), WriterID: writerID})
	if err != nil {
		return nil, &types.DispatchFailed{MemoURI: memoURI, Reason: "submitting to cluster manager", Err: err}
	}

	future, resolve := NewChannelFuture()
	go s.awaitResult(ctx, memoURI, resp.AgentID, resolve)
	return future, nil
}

func (s *Cluster) awaitResult(ctx context.Context, memoURI types.MemoURI, agentID string, resolve func(types.ResultMetadata, error)) {
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			resolve(types.ResultMetadata{}, ctx.Err())
			return
		case <-ticker.C:
			env, found, err := pollEnvelope(ctx, s.store, memoURI)
			if err != nil {
				log.WithMemoURI(string(memoURI)).Warn().Err(err).Str("agent_id", agentID).Msg("cluster shim: polling for result failed")
				continue
			}
			if !found {
				continue
			}
			resolve(env.Metadata, nil)
			return
		}
	}
}

// pollEnvelope mirrors pkg/runner's unexported probeResult — this shim
// backend lives in a different package and can't call it directly, but
// the result/exception lookup it performs is the same one the Runner
// does after any synchronous shim's Dispatch returns.
func pollEnvelope(ctx context.Context, store blobstore.Store, memoURI types.MemoURI) (*types.Envelope, bool, error) {
	resultRefs, err := store.List(ctx, string(memoURI)+"/"+string(types.ControlKindResult)+"/")
	if err != nil {
		return nil, false, err
	}
	exceptionRefs, err := store.List(ctx, string(memoURI)+"/"+string(types.ControlKindException)+"/")
	if err != nil {
		return nil, false, err
	}

	all := append(resultRefs, exceptionRefs...)
	if len(all) == 0 {
		return nil, false, nil
	}
	sort.Slice(all, func(i, j int) bool { return path.Base(all[i].URI) < path.Base(all[j].URI) })
	newest := all[len(all)-1]

	rc, _, err := store.Get(ctx, newest.URI)
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	env, err := serializer.DecodeEnvelope(data)
	if err != nil {
		return nil, false, err
	}
	return env, true, nil
}
