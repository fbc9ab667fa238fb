package types

import "fmt"

// SerializationError reports a failure encoding or decoding a Thunk's
// argument bundle or a result Envelope, annotated with the object-graph
// path that triggered it (e.g. "args[2].nested.foo").
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error at %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// DispatchFailed indicates the shim could not hand the call off to a
// worker at all (connection refused, queue full, process failed to start).
type DispatchFailed struct {
	MemoURI MemoURI
	Reason  string
	Err     error
}

func (e *DispatchFailed) Error() string {
	return fmt.Sprintf("dispatch failed for %s: %s", e.MemoURI, e.Reason)
}

func (e *DispatchFailed) Unwrap() error { return e.Err }

// RemoteCrashed indicates the remote side accepted the call but never
// wrote a result or exception control file before its lease expired.
type RemoteCrashed struct {
	MemoURI MemoURI
	RunID   string
}

func (e *RemoteCrashed) Error() string {
	return fmt.Sprintf("remote crashed for %s (run %s): no result written", e.MemoURI, e.RunID)
}

// ResultMissingError wraps RemoteCrashed (or an equivalent cause) once the
// Runner has given up waiting for a result.
type ResultMissingError struct {
	MemoURI MemoURI
	Err     error
}

func (e *ResultMissingError) Error() string {
	return fmt.Sprintf("result missing for %s: %v", e.MemoURI, e.Err)
}

func (e *ResultMissingError) Unwrap() error { return e.Err }

// LockWasStolen is a cooperative signal: another writer has taken over the
// memo URI's lease. The caller should retry from a fresh cache probe, not
// treat this as fatal.
type LockWasStolen struct {
	MemoURI     MemoURI
	PriorWriter string
	NewWriter   string
}

func (e *LockWasStolen) Error() string {
	return fmt.Sprintf("lock for %s stolen from %s by %s", e.MemoURI, e.PriorWriter, e.NewWriter)
}

// HashMismatch indicates a blob's observed content hash does not match its
// recorded hash — data corruption, never retried.
type HashMismatch struct {
	URI      string
	Expected string
	Actual   string
}

func (e *HashMismatch) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s, got %s", e.URI, e.Expected, e.Actual)
}

// RequiredResultMissing is returned by Runner.Submit when RequireAllResults
// is enabled and a memo URI has no cached result — the Runner refuses to
// dispatch rather than silently computing it.
type RequiredResultMissing struct {
	MemoURI MemoURI
}

func (e *RequiredResultMissing) Error() string {
	return fmt.Sprintf("required result missing for %s and dispatch is disabled", e.MemoURI)
}

// TransientError wraps an I/O failure the caller already retried internally
// (per the BlobStore retry policy) and ultimately could not recover from.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
