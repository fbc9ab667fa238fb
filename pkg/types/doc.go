/*
Package types defines the core data structures shared across the memoizing
pickling runner (mpr).

This package contains the domain model that every other package builds on:
thunks (a function call pinned to a specific argument encoding), memo URIs
(the content address a thunk resolves to), control files (the small state
machine recorded per memo URI), result metadata, leases, and the large/shared
object references used to keep oversized payloads out of the hot path.

# Architecture

The types package is the foundation of mpr's data model. It defines:

  - Thunks: a function id, a logic key, and an encoded argument bundle
  - Memo URIs: the blob-store key a thunk resolves to once hashed
  - Control files: INVOCATION / LOCK / RESULT / EXCEPTION markers plus the
    RESULT-METADATA sidecar
  - Result metadata: exit status, timing, and output redirection
  - Leases: ownership of a memo URI for the duration of dispatch
  - Large/shared object references: redirection for payloads that should
    not round-trip through the primary argument encoding

All types are designed to be:
  - Serializable (JSON-tagged; envelopes are stored as JSON, invocations
    as gob via pkg/serializer)
  - Immutable where practical (construct a new value on update)
  - Self-documenting (explicit field names, no embedded metadata strings)

# Core Types

Invocation:
  - Thunk: a pending call — function id, logic key, encoded args
  - MemoURI: the deterministic blob-store key of a Thunk
  - Envelope: the versioned wire format written to the blob store

Control:
  - ControlFile: kind + payload recorded under a memo URI's control prefix
  - ControlKind: invocation, lock, result, exception, result-metadata

Execution:
  - Lease: time-boxed ownership with a writer id, a write time and a TTL
  - ResultMetadata: wall time, exit classification, output size

Large objects:
  - LargeObjectRef: a side blob referenced from inside an encoded argument
  - SharedObjectRef: a caller-supplied object not owned by the runner

# Usage

Constructing a Thunk:

	thunk := &types.Thunk{
		FuncRef:  "pipelines.ingest.normalize",
		LogicKey: "normalize-v3",
		Args:     encodedArgs,
	}

Deriving the resulting memo URI is the job of pkg/memokey; this package only
carries the shapes, not the hashing.

# Design Patterns

Enumeration Pattern:

	Enums use typed string constants for safety and clarity:
	  type ControlKind string
	  const (
	      ControlKindInvocation ControlKind = "invocation"
	      ControlKindResult     ControlKind = "result"
	  )

Optional Fields:

	Optional fields are plain values tagged omitempty, not pointers:
	  - Thunk.Args, Kwargs, Calls: empty when the call has none
	  - Envelope.Sources and exception fields: empty on a plain result

# Integration Points

This package integrates with:

  - pkg/blobstore: persists Envelopes and ControlFiles by MemoURI
  - pkg/serializer: produces the Args bytes carried by a Thunk
  - pkg/memokey: derives MemoURI from a Thunk
  - pkg/lease: manages Lease acquisition and renewal
  - pkg/runner: orchestrates the full Thunk -> Result lifecycle
  - pkg/remoteentry: consumes Thunks and writes ResultMetadata

# Thread Safety

Types in this package carry no internal synchronization; they are plain
value/reference types. Callers sharing a *Thunk or *Lease across goroutines
must synchronize externally — the blob store and lease manager are the only
components expected to mutate shared state.
*/
package types
