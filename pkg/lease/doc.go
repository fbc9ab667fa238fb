/*
Package lease implements ownership of a memo URI for the duration of
dispatch: try_acquire, maintain, release, with last-writer-wins semantics
and a confirm-delay to reduce (not eliminate) the race between two writers
attempting the same memo URI at once.

Two drivers satisfy the Lease interface:

  - BlobLease, the default, built directly on the same blobstore.Store as
    everything else — best-effort, per the spec's explicit non-goal of
    strong mutual exclusion.
  - RaftLease, an optional stronger variant for operators running multiple
    orchestrator replicas who want single-writer guarantees beyond
    best-effort, adapted from the teacher's Raft FSM.

pkg/runner is agnostic to which is configured; Scheduler coalesces
heartbeats for every in-flight call into one background loop rather than
one ticker per call.
*/
package lease
