package clusteragent

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/clustermanager"
	"github.com/cuemby/mpr/pkg/clusterrpc"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/memokey"
	"github.com/cuemby/mpr/pkg/remoteentry"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

func newTestStore(t *testing.T) blobstore.Store {
	t.Helper()
	store, err := blobstore.Open("file://" + t.TempDir())
	require.NoError(t, err)
	return store
}

func newBufconnManagerClient(t *testing.T, mgr *clustermanager.Manager) *clusterrpc.Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	clusterrpc.RegisterClusterServer(s, mgr)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })

	return clusterrpc.NewClient(cc)
}

func putThunk(t *testing.T, store blobstore.Store, memoURI types.MemoURI, thunk types.Thunk) {
	t.Helper()
	data, err := serializer.EncodeValue("invocation", thunk)
	require.NoError(t, err)
	_, err = store.Put(context.Background(), string(memoURI)+"/invocation", bytes.NewReader(data), "application/octet-stream")
	require.NoError(t, err)
}

func encodeArg(t *testing.T, v any) []byte {
	t.Helper()
	data, err := serializer.EncodeValue("arg", v)
	require.NoError(t, err)
	return data
}

func TestAgentExecutesSubmittedAssignment(t *testing.T) {
	store := newTestStore(t)
	memokey.Register(memokey.Registration{
		FuncID: "clusteragent_test--double",
		Fn:     func(n int) int { return n * 2 },
	})

	memoURI := types.MemoURI("mops2-mpf/clusteragent_test--double/double-v1/able-badge")
	putThunk(t, store, memoURI, types.Thunk{
		FuncRef: "clusteragent_test--double",
		Args:    [][]byte{encodeArg(t, 21)},
	})

	l := lease.NewBlobLease(store, time.Millisecond)
	_, granted, err := l.TryAcquire(context.Background(), memoURI, "writer-a", time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	mgr := clustermanager.New()
	client := newBufconnManagerClient(t, mgr)

	agent := New(client, store, Config{
		AgentID:      "agent-1",
		PollInterval: 10 * time.Millisecond,
		RemoteEntry:  remoteentry.Config{Lease: l, LeaseTTL: time.Minute},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go agent.Run(ctx)

	// Give the agent time to register before submitting, so Submit's
	// placement has a ready agent to pick.
	time.Sleep(20 * time.Millisecond)

	_, err = mgr.Submit(ctx, &clusterrpc.SubmitRequest{MemoURI: string(memoURI), WriterID: "writer-a"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		refs, err := store.List(ctx, string(memoURI)+"/"+string(types.ControlKindResult)+"/")
		return err == nil && len(refs) == 1
	}, time.Second, 10*time.Millisecond, "expected the agent to have written a result")
}
