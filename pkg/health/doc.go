/*
Package health provides pluggable health checkers — HTTP, TCP, and exec —
for mpr's backends: the configured BlobStore driver (postgres/redis reply
over TCP), a RaftLease peer, or a cluster agent's HTTP health endpoint.
Checker results feed pkg/metrics.RegisterComponent so /ready reflects
actual backend reachability rather than process liveness alone.

This package makes no assumption about what it is checking beyond an
address or URL — pkg/health/backends.go supplies the mpr-specific
constructors.
*/
package health
