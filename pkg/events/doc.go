/*
Package events is an in-process pub/sub broker for call lifecycle events:
cache hits, dispatches, resolutions, and lock contention. pkg/summary is
its primary subscriber, turning the event stream into an append-only
call log without the Runner calling it directly. pkg/metrics does not
subscribe; the Runner updates its counters itself.

Publish hands the event to the broker's buffered queue (100 events) and
blocks only while that queue is full, returning early once the broker is
stopped. Delivery is best-effort: a slow subscriber with a full buffer
skips events rather than stalling the broadcast to the others.
*/
package events
