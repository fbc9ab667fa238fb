/*
Package deferredwork runs the bookkeeping that must happen after a call
resolves but that the caller should never have to wait on: uploading large
objects discovered in a result, writing hashref sidecars for shared
objects, and appending to the summary log. Three logical queues —
upload_large_objects, write_hashrefs, write_summary — share one bounded
pool of goroutines, adapted from the ticker-and-channel shape
pkg/metrics.Collector uses to run work off the hot path.

Jobs are deduplicated by content hash within a process lifetime: a large
object already uploaded once is never resubmitted, since BlobStore's Put
has no native dedup of its own. Draining the pool is skipped entirely when
a call resolves from a fast-result-probe cache hit — there is nothing new
to upload or summarize.
*/
package deferredwork
