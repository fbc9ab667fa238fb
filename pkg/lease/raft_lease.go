package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/types"
)

// RaftLease is the optional strong Lease driver for operators running
// multiple orchestrator replicas who want single-writer guarantees beyond
// BlobLease's best-effort confirm-delay window. Acquire/release become
// Raft log commands applied through the same hashicorp/raft stack the
// teacher uses for cluster state, here scoped to a lock table only.
type RaftLease struct {
	raft *raft.Raft
	fsm  *lockFSM
}

// RaftConfig configures a single RaftLease replica.
type RaftConfig struct {
	NodeID   string
	BindAddr string
	DataDir  string
	Bootstrap bool
}

// NewRaftLease starts (or rejoins) a Raft-backed lock table at cfg.DataDir.
func NewRaftLease(cfg RaftConfig) (*RaftLease, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("lease: creating raft data dir: %w", err)
	}

	fsm := newLockFSM()

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.Logger = nil

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("lease: resolving bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("lease: creating raft transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("lease: creating snapshot store: %w", err)
	}

	boltStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("lease: creating raft bolt store: %w", err)
	}
	// Create (or check) a separate diag.db bbolt file beside the log
	// store; the handle is closed right away and nothing reads it later.
	// raftboltdb already wraps bbolt for Raft's own use.
	diagDB, err := bolt.Open(filepath.Join(cfg.DataDir, "diag.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("lease: opening diagnostics db: %w", err)
	}
	_ = diagDB.Close()

	r, err := raft.NewRaft(raftConfig, fsm, boltStore, boltStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("lease: starting raft: %w", err)
	}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
		}
		r.BootstrapCluster(configuration)
	}

	log.Logger.Info().Str("node_id", cfg.NodeID).Str("bind_addr", cfg.BindAddr).Msg("raft lease started")
	return &RaftLease{raft: r, fsm: fsm}, nil
}

func (l *RaftLease) applyCommand(ctx context.Context, op string, payload any) (any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	cmd := lockCommand{Op: op, Data: data}
	encoded, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	future := l.raft.Apply(encoded, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("lease: raft apply %s: %w", op, err)
	}
	if fsmErr, ok := future.Response().(error); ok {
		return nil, fsmErr
	}
	return future.Response(), nil
}

func (l *RaftLease) TryAcquire(ctx context.Context, memoURI types.MemoURI, writerID string, ttl time.Duration) (types.Lease, bool, error) {
	resp, err := l.applyCommand(ctx, opAcquireLock, acquireLockPayload{MemoURI: memoURI, WriterID: writerID, TTL: ttl})
	if err != nil {
		return types.Lease{}, false, err
	}
	result := resp.(fsmAcquireResult)
	return result.Lease, result.Granted, nil
}

func (l *RaftLease) Maintain(ctx context.Context, memoURI types.MemoURI, writerID string, ttl time.Duration) error {
	current, found := l.fsm.current(memoURI)
	if found && current.WriterID != writerID {
		return &types.LockWasStolen{MemoURI: memoURI, PriorWriter: writerID, NewWriter: current.WriterID}
	}
	_, granted, err := l.TryAcquire(ctx, memoURI, writerID, ttl)
	if err != nil {
		return err
	}
	if !granted {
		return &types.LockWasStolen{MemoURI: memoURI, PriorWriter: writerID}
	}
	return nil
}

func (l *RaftLease) Release(ctx context.Context, memoURI types.MemoURI, writerID string) error {
	_, err := l.applyCommand(ctx, opReleaseLock, releaseLockPayload{MemoURI: memoURI, WriterID: writerID})
	return err
}

func (l *RaftLease) Current(_ context.Context, memoURI types.MemoURI) (types.Lease, bool, error) {
	lease, found := l.fsm.current(memoURI)
	return lease, found, nil
}

// Shutdown gracefully stops the underlying Raft instance.
func (l *RaftLease) Shutdown() error {
	return l.raft.Shutdown().Error()
}
