/*
Package metrics defines mpr's Prometheus collectors and the HTTP
handlers that expose them, plus a small process health registry modeled
on the same components it collects for (blob store, lease driver, shim
backend).

Counters and gauges here track call outcomes (cache hit vs dispatch),
lease contention, and deferred-work backlog — not the teacher's cluster
topology metrics, since mpr has no nodes or services of its own.
*/
package metrics
