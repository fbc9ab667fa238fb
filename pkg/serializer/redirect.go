package serializer

import "github.com/cuemby/mpr/pkg/types"

// RedirectThreshold is the payload size above which EncodeValue's caller
// should prefer constructing a types.LargeObjectRef instead of inlining
// the value. Nothing in this module compares a payload's size against
// it; callers decide when to construct a LargeObjectRef.
const RedirectThreshold = 1 << 20 // 1MiB

// Redirect recognizes the two reference types the serializer never
// inlines: a LargeObjectRef for payloads pkg/deferredwork must upload, and
// a SharedObjectRef for caller-owned objects that must not be re-uploaded
// at all. Both are returned as the Thunk's bytes rather than the object
// itself — the serializer only ever sees their small reference shape.
func Redirect(v any) (isRef bool, ref any) {
	switch r := v.(type) {
	case types.LargeObjectRef:
		return true, r
	case *types.LargeObjectRef:
		return true, *r
	case types.SharedObjectRef:
		return true, r
	case *types.SharedObjectRef:
		return true, *r
	default:
		return false, nil
	}
}
