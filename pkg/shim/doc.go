/*
Package shim implements the ShimContract: the boundary between
pkg/runner, which only knows it needs a memo URI dispatched, and wherever
execution actually happens.

The shim owns placement. pkg/runner never schedules — it calls
Dispatch and waits on the returned PFuture. Four backends are provided:

  - InProcess: runs RemoteEntry in a goroutine, for single-process use.
  - Subprocess: os/execs the mpr remote-entry binary synchronously.
  - Containerd: runs remote-entry inside a containerd sandbox, async.
  - Cluster: dispatches over gRPC to a pool of registered cluster agents,
    async, with least-loaded placement among ready agents.

DispatchFailed, RemoteCrashed, and LockWasStolen are modeled as distinct
error types rather than being folded into a single generic error, so
pkg/runner can decide per-failure-mode whether to retry, re-dispatch, or
give up.
*/
package shim
