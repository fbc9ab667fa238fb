package types

import "time"

// ControlKind identifies the kind of control file recorded under a memo
// URI's control prefix.
type ControlKind string

const (
	ControlKindInvocation ControlKind = "invocation"
	ControlKindLock       ControlKind = "lock"
	ControlKindResult     ControlKind = "result"
	ControlKindException  ControlKind = "exception"
	ControlKindMetadata   ControlKind = "result-metadata"
)

// EnvelopeKind distinguishes a successful payload from a captured exception.
type EnvelopeKind string

const (
	EnvelopeKindOK  EnvelopeKind = "ok"
	EnvelopeKindErr EnvelopeKind = "err"
)

// ProtocolVersion is embedded in every Envelope written to the blob store.
// Bumping it is a wire-breaking change; readers must refuse to interpret
// bytes carrying an unrecognized version rather than guess.
const ProtocolVersion = 1

// BlobRef addresses a single object inside a BlobStore.
type BlobRef struct {
	URI         string `json:"uri"`
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// Thunk is a pending call pinned to a specific, already-encoded argument
// bundle. It is what gets hashed into a MemoURI and what RemoteEntry
// ultimately invokes.
type Thunk struct {
	FuncRef       string            `json:"func_ref"`
	LogicKey      string            `json:"logic_key"`
	Args          [][]byte          `json:"args,omitempty"`
	Kwargs        map[string][]byte `json:"kwargs,omitempty"`
	KwargOrder    []string          `json:"kwarg_order,omitempty"`
	ArgumentBytes []byte            `json:"argument_bytes"`
	Calls         []CallRef         `json:"calls,omitempty"`
	PipelineID    string            `json:"pipeline_id"`
}

// CallRef records a sub-function call folded into a parent Thunk's hash so
// the Runner can detect a stale logic key on a later lookup.
type CallRef struct {
	ArgName  string `json:"arg_name"`
	FuncID   string `json:"func_id"`
	LogicKey string `json:"logic_key"`
}

// MemoURI is the deterministic blob-store path a Thunk resolves to.
type MemoURI string

func (m MemoURI) String() string { return string(m) }

// ControlFile is a small state-machine marker recorded under a memo URI's
// control prefix: an invocation record, a lock, a result, or an exception.
type ControlFile struct {
	Kind      ControlKind `json:"kind"`
	MemoURI   MemoURI     `json:"memo_uri"`
	RunID     string      `json:"run_id,omitempty"`
	WriterID  string      `json:"writer_id,omitempty"`
	WrittenAt time.Time   `json:"written_at"`
	Payload   []byte      `json:"payload,omitempty"`
}

// ResultMetadata describes the outcome of a resolved call.
type ResultMetadata struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Duration    time.Duration     `json:"duration"`
	ExitStatus  string            `json:"exit_status"` // "ok" | "exception" | "crashed"
	OutputBytes int64             `json:"output_bytes"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Envelope is the versioned wire format written to the blob store for both
// successful results and captured exceptions.
type Envelope struct {
	ProtocolVersion  int            `json:"protocol_version"`
	Kind             EnvelopeKind   `json:"kind"`
	Payload          []byte         `json:"payload,omitempty"`
	Metadata         ResultMetadata `json:"metadata"`
	Sources          []BlobRef      `json:"sources,omitempty"`
	ExceptionType    string         `json:"exception_type,omitempty"`
	ExceptionMessage string         `json:"exception_message,omitempty"`
	Traceback        string         `json:"traceback,omitempty"`
}

// Lease represents time-boxed, best-effort ownership of a memo URI for the
// duration of dispatch. Last-writer-wins: a writer only trusts its lease
// while its own WriterID is still the one recorded in the store.
type Lease struct {
	MemoURI   MemoURI           `json:"memo_uri"`
	WriterID  string            `json:"writer_id"`
	WrittenAt time.Time         `json:"written_at"`
	TTL       time.Duration     `json:"ttl"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Expired reports whether the lease's TTL has elapsed as of now.
func (l Lease) Expired(now time.Time) bool {
	if l.TTL <= 0 {
		return false
	}
	return now.After(l.WrittenAt.Add(l.TTL))
}

// LargeObjectRef redirects an oversized argument or result payload to a
// side blob instead of inlining it into the primary encoding. A caller
// constructing one to return or pass as an argument sets Bytes; pkg/serializer
// strips Bytes out of what actually gets encoded and routes it to
// pkg/deferredwork for upload, so the content itself never rides along
// inside the parent Thunk or Envelope.
type LargeObjectRef struct {
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	LogicalName string `json:"logical_name"`
	URI         string `json:"uri,omitempty"`

	// Bytes is the pending content, set only by the caller constructing a
	// fresh ref. Never serialized or persisted — pkg/serializer consumes
	// it once and clears it before encoding the reference itself.
	Bytes []byte `json:"-"`
}

// SharedObjectRef references a caller-supplied object that the runner does
// not own and must not re-upload. Dedup key is (PipelineID, Name).
type SharedObjectRef struct {
	Name        string `json:"name"`
	ContentHash string `json:"content_hash"`
	PipelineID  string `json:"pipeline_id"`
}

// Result is the resolved, decoded outcome handed back to a caller.
type Result struct {
	MemoURI  MemoURI
	Metadata ResultMetadata
	Value    []byte
	Err      error
}
