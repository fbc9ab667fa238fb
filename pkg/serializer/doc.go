/*
Package serializer encodes and decodes the argument bundles and result
envelopes that flow between pkg/runner and the blob store.

Encoding is split across two codecs deliberately: json-iterator/go drives
the envelope shell (protocol version, metadata, sources) because it is a
drop-in, faster encoding/json replacement and the shell is meant to stay
human-inspectable; encoding/gob drives the canonicalized argument tuple
because gob's deterministic field ordering matters more than interop once
bytes are about to be hashed into a memo URI.

Large objects (anything satisfying types.LargeObjectRef's shape) and
shared objects (types.SharedObjectRef) are redirected rather than inlined:
EncodeRedirected recognizes them via a type switch and emits only the
reference. A large object's bytes go to pkg/deferredwork's upload queue,
or are uploaded inline when no pool is given; a shared object is never
uploaded.
*/
package serializer
