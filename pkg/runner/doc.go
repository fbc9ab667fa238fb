/*
Package runner is the orchestrator-side state machine: it composes
pkg/memokey, pkg/blobstore, pkg/lease, and pkg/shim into the per-call
protocol that turns a function reference plus arguments into a cached,
content-addressed result.

Submit runs the protocol in a goroutine per call and returns a Future
immediately, so an application can keep thousands of calls in flight;
lease maintenance for every in-flight call is coalesced onto a single
shared pkg/lease.Scheduler rather than one heartbeat goroutine per call.

Per call the sequence is strict — key, probe, upload, invocation, lease,
dispatch, result — though independent calls have no ordering guarantee
between them. A call that observes LockWasStolen restarts from the probe
step rather than treating it as fatal: another writer has taken over and
may already be producing the result this call wants.
*/
package runner
