package lease

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/raft"

	"github.com/cuemby/mpr/pkg/types"
)

// lockFSM is the raft.FSM backing RaftLease, adapted from the teacher's
// WarrenFSM: a JSON-tagged Command dispatches on Op, except here the only
// state being replicated is the lock table, not a full cluster model.
type lockFSM struct {
	mu    sync.RWMutex
	locks map[types.MemoURI]types.Lease
}

func newLockFSM() *lockFSM {
	return &lockFSM{locks: make(map[types.MemoURI]types.Lease)}
}

// lockCommand is the Raft log entry payload, mirroring the teacher's
// Command{Op, Data} envelope.
type lockCommand struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opAcquireLock = "acquire_lock"
	opReleaseLock = "release_lock"
)

type acquireLockPayload struct {
	MemoURI  types.MemoURI `json:"memo_uri"`
	WriterID string        `json:"writer_id"`
	TTL      time.Duration `json:"ttl"`
}

type releaseLockPayload struct {
	MemoURI  types.MemoURI `json:"memo_uri"`
	WriterID string        `json:"writer_id"`
}

// fsmAcquireResult is what Apply returns for an acquire_lock command so
// the caller (via raft.ApplyFuture.Response()) learns whether it won.
type fsmAcquireResult struct {
	Lease   types.Lease
	Granted bool
}

func (f *lockFSM) Apply(log *raft.Log) interface{} {
	var cmd lockCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("lease: unmarshal raft command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opAcquireLock:
		var p acquireLockPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		existing, held := f.locks[p.MemoURI]
		if held && !existing.Expired(time.Now()) && existing.WriterID != p.WriterID {
			return fsmAcquireResult{Lease: existing, Granted: false}
		}
		lease := types.Lease{MemoURI: p.MemoURI, WriterID: p.WriterID, WrittenAt: time.Now(), TTL: p.TTL}
		f.locks[p.MemoURI] = lease
		return fsmAcquireResult{Lease: lease, Granted: true}

	case opReleaseLock:
		var p releaseLockPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		if existing, held := f.locks[p.MemoURI]; held && existing.WriterID == p.WriterID {
			delete(f.locks, p.MemoURI)
		}
		return nil

	default:
		return fmt.Errorf("lease: unknown raft command %q", cmd.Op)
	}
}

func (f *lockFSM) current(memoURI types.MemoURI) (types.Lease, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	lease, ok := f.locks[memoURI]
	return lease, ok
}

func (f *lockFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snapshot := make(map[types.MemoURI]types.Lease, len(f.locks))
	for k, v := range f.locks {
		snapshot[k] = v
	}
	return &lockSnapshot{locks: snapshot}, nil
}

func (f *lockFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var locks map[types.MemoURI]types.Lease
	if err := json.NewDecoder(rc).Decode(&locks); err != nil {
		return fmt.Errorf("lease: decode raft snapshot: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = locks
	return nil
}

type lockSnapshot struct {
	locks map[types.MemoURI]types.Lease
}

func (s *lockSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.locks); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *lockSnapshot) Release() {}
