package clusterrpc

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type fakeServer struct {
	submitted []*SubmitRequest
}

func (f *fakeServer) RegisterAgent(ctx context.Context, in *RegisterAgentRequest) (*RegisterAgentResponse, error) {
	return &RegisterAgentResponse{HeartbeatIntervalSeconds: 5}, nil
}

func (f *fakeServer) Heartbeat(ctx context.Context, in *HeartbeatRequest) (*HeartbeatResponse, error) {
	return &HeartbeatResponse{}, nil
}

func (f *fakeServer) Submit(ctx context.Context, in *SubmitRequest) (*SubmitResponse, error) {
	f.submitted = append(f.submitted, in)
	return &SubmitResponse{AgentID: "agent-1"}, nil
}

func (f *fakeServer) PollAssignment(ctx context.Context, in *PollAssignmentRequest) (*PollAssignmentResponse, error) {
	if len(f.submitted) == 0 {
		return &PollAssignmentResponse{Available: false}, nil
	}
	req := f.submitted[0]
	f.submitted = f.submitted[1:]
	return &PollAssignmentResponse{Available: true, MemoURI: req.MemoURI, WriterID: req.WriterID}, nil
}

func dialBufconn(t *testing.T, srv Server) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	RegisterClusterServer(s, srv)
	go s.Serve(lis)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		t.Fatalf("dialing bufconn: %v", err)
	}
	return NewClient(cc), func() {
		cc.Close()
		s.Stop()
	}
}

func TestSubmitAndPollAssignmentRoundtrip(t *testing.T) {
	fake := &fakeServer{}
	client, closeFn := dialBufconn(t, fake)
	defer closeFn()

	ctx := context.Background()
	submitResp, err := client.Submit(ctx, &SubmitRequest{MemoURI: "mpr/ns/fn/logic/hash", WriterID: "writer-1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitResp.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", submitResp.AgentID)
	}

	pollResp, err := client.PollAssignment(ctx, &PollAssignmentRequest{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("PollAssignment() error = %v", err)
	}
	if !pollResp.Available {
		t.Fatal("PollAssignment() should have returned the submitted call")
	}
	if pollResp.MemoURI != "mpr/ns/fn/logic/hash" || pollResp.WriterID != "writer-1" {
		t.Errorf("PollAssignment() = %+v, want the submitted memo uri/writer id", pollResp)
	}

	emptyResp, err := client.PollAssignment(ctx, &PollAssignmentRequest{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("PollAssignment() second call error = %v", err)
	}
	if emptyResp.Available {
		t.Error("PollAssignment() should be empty after the queue drains")
	}
}

func TestRegisterAndHeartbeat(t *testing.T) {
	fake := &fakeServer{}
	client, closeFn := dialBufconn(t, fake)
	defer closeFn()

	ctx := context.Background()
	regResp, err := client.RegisterAgent(ctx, &RegisterAgentRequest{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	if regResp.HeartbeatIntervalSeconds != 5 {
		t.Errorf("HeartbeatIntervalSeconds = %d, want 5", regResp.HeartbeatIntervalSeconds)
	}

	if _, err := client.Heartbeat(ctx, &HeartbeatRequest{AgentID: "agent-1", InFlightCalls: 2}); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
}
