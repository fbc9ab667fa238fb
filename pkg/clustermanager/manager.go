// Package clustermanager tracks registered cluster agents and hands out
// placement decisions to pkg/shim's Cluster backend, adapted from the
// teacher's pkg/manager agent registry — single-node and in-memory
// rather than raft-backed, since mpr's object store (not the manager) is
// the durable source of truth for every call's state. A manager crash
// loses only in-flight placement queues; every invocation and result
// already written survives in the blob store, and a restarted manager
// rebuilds its agent registry from fresh RegisterAgent calls.
package clustermanager

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/mpr/pkg/clusterrpc"
	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/shim"
	"github.com/cuemby/mpr/pkg/types"
)

// DefaultHeartbeatInterval is handed back to agents in RegisterAgent so
// they know how often to call Heartbeat before AgentTimeout expires them.
const DefaultHeartbeatInterval = 5 * time.Second

// AgentTimeout is how long an agent can go without a heartbeat before
// Manager stops placing new work on it.
const AgentTimeout = 20 * time.Second

type assignment struct {
	memoURI  string
	writerID string
}

type agentRecord struct {
	lastSeen      time.Time
	inFlightCalls int
	queue         []assignment
}

// Manager implements clusterrpc.Server.
type Manager struct {
	mu     sync.Mutex
	agents map[string]*agentRecord
}

func New() *Manager {
	return &Manager{agents: make(map[string]*agentRecord)}
}

func (m *Manager) RegisterAgent(ctx context.Context, in *clusterrpc.RegisterAgentRequest) (*clusterrpc.RegisterAgentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[in.AgentID] = &agentRecord{lastSeen: time.Now()}
	log.Logger.Info().Str("agent_id", in.AgentID).Msg("cluster agent registered")
	return &clusterrpc.RegisterAgentResponse{HeartbeatIntervalSeconds: int(DefaultHeartbeatInterval.Seconds())}, nil
}

func (m *Manager) Heartbeat(ctx context.Context, in *clusterrpc.HeartbeatRequest) (*clusterrpc.HeartbeatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.agents[in.AgentID]
	if !ok {
		rec = &agentRecord{}
		m.agents[in.AgentID] = rec
	}
	rec.lastSeen = time.Now()
	rec.inFlightCalls = in.InFlightCalls
	return &clusterrpc.HeartbeatResponse{}, nil
}

func (m *Manager) Submit(ctx context.Context, in *clusterrpc.SubmitRequest) (*clusterrpc.SubmitResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agentID := shim.SelectAgent(m.readyAgentsLocked())
	if agentID == "" {
		return nil, &types.DispatchFailed{MemoURI: types.MemoURI(in.MemoURI), Reason: "no ready cluster agents"}
	}

	rec := m.agents[agentID]
	rec.queue = append(rec.queue, assignment{memoURI: in.MemoURI, writerID: in.WriterID})
	return &clusterrpc.SubmitResponse{AgentID: agentID}, nil
}

func (m *Manager) PollAssignment(ctx context.Context, in *clusterrpc.PollAssignmentRequest) (*clusterrpc.PollAssignmentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.agents[in.AgentID]
	if !ok || len(rec.queue) == 0 {
		return &clusterrpc.PollAssignmentResponse{Available: false}, nil
	}
	next := rec.queue[0]
	rec.queue = rec.queue[1:]
	return &clusterrpc.PollAssignmentResponse{Available: true, MemoURI: next.memoURI, WriterID: next.writerID}, nil
}

// readyAgentsLocked must be called with mu held.
func (m *Manager) readyAgentsLocked() []shim.AgentStatus {
	now := time.Now()
	statuses := make([]shim.AgentStatus, 0, len(m.agents))
	for id, rec := range m.agents {
		statuses = append(statuses, shim.AgentStatus{
			ID:            id,
			Ready:         now.Sub(rec.lastSeen) < AgentTimeout,
			InFlightCalls: rec.inFlightCalls,
		})
	}
	return statuses
}
