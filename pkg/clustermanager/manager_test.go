package clustermanager

import (
	"context"
	"testing"

	"github.com/cuemby/mpr/pkg/clusterrpc"
)

func TestSubmitRequiresAReadyAgent(t *testing.T) {
	m := New()
	_, err := m.Submit(context.Background(), &clusterrpc.SubmitRequest{MemoURI: "mpr/ns/fn/logic/hash", WriterID: "w1"})
	if err == nil {
		t.Fatal("Submit() should fail with no registered agents")
	}
}

func TestSubmitPlacesOnRegisteredAgent(t *testing.T) {
	m := New()
	ctx := context.Background()

	if _, err := m.RegisterAgent(ctx, &clusterrpc.RegisterAgentRequest{AgentID: "a1"}); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	if _, err := m.Heartbeat(ctx, &clusterrpc.HeartbeatRequest{AgentID: "a1"}); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	resp, err := m.Submit(ctx, &clusterrpc.SubmitRequest{MemoURI: "mpr/ns/fn/logic/hash", WriterID: "w1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.AgentID != "a1" {
		t.Errorf("AgentID = %q, want a1", resp.AgentID)
	}

	poll, err := m.PollAssignment(ctx, &clusterrpc.PollAssignmentRequest{AgentID: "a1"})
	if err != nil {
		t.Fatalf("PollAssignment() error = %v", err)
	}
	if !poll.Available || poll.MemoURI != "mpr/ns/fn/logic/hash" || poll.WriterID != "w1" {
		t.Errorf("PollAssignment() = %+v, want the submitted call", poll)
	}
}

func TestSubmitPrefersLeastLoadedAgent(t *testing.T) {
	m := New()
	ctx := context.Background()

	for _, id := range []string{"busy", "idle"} {
		if _, err := m.RegisterAgent(ctx, &clusterrpc.RegisterAgentRequest{AgentID: id}); err != nil {
			t.Fatalf("RegisterAgent(%s) error = %v", id, err)
		}
	}
	if _, err := m.Heartbeat(ctx, &clusterrpc.HeartbeatRequest{AgentID: "busy", InFlightCalls: 5}); err != nil {
		t.Fatalf("Heartbeat(busy) error = %v", err)
	}
	if _, err := m.Heartbeat(ctx, &clusterrpc.HeartbeatRequest{AgentID: "idle", InFlightCalls: 0}); err != nil {
		t.Fatalf("Heartbeat(idle) error = %v", err)
	}

	resp, err := m.Submit(ctx, &clusterrpc.SubmitRequest{MemoURI: "mpr/ns/fn/logic/hash", WriterID: "w1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.AgentID != "idle" {
		t.Errorf("AgentID = %q, want idle (least loaded)", resp.AgentID)
	}
}

func TestPollAssignmentEmptyWhenNoWork(t *testing.T) {
	m := New()
	ctx := context.Background()
	if _, err := m.RegisterAgent(ctx, &clusterrpc.RegisterAgentRequest{AgentID: "a1"}); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}

	poll, err := m.PollAssignment(ctx, &clusterrpc.PollAssignmentRequest{AgentID: "a1"})
	if err != nil {
		t.Fatalf("PollAssignment() error = %v", err)
	}
	if poll.Available {
		t.Error("PollAssignment() should report unavailable with an empty queue")
	}
}
