/*
Package blobstore defines the content-addressed object store that every
memo URI, control file, and result envelope is read from and written to.

A BlobStore is intentionally small: Put, Get, Head, List, Delete. Anything
fancier — retries, dedup, backend selection — lives in this package as a
wrapper around that interface, not as additional interface surface.

# Drivers

Drivers register themselves at init() time via Register, keyed by URI
scheme ("file", "bbolt", "postgres", "redis"). Open inspects the scheme of
a root URI and hands off to the matching factory. Registration is
intentionally closed after startup: there is no unregister, mirroring the
rest of mpr's registry-style components (see pkg/memokey).

# Retry policy

Backends see transient failures — a dropped connection, a timed-out
roundtrip. Open wraps every driver in a bounded exponential backoff with
jitter before handing it back to the caller, so callers never write their
own retry loop around a Get/Put.
*/
package blobstore
