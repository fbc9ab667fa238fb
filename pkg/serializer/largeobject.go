package serializer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/deferredwork"
	"github.com/cuemby/mpr/pkg/types"
)

// ObjectsPrefix roots the content-addressed path large objects are
// uploaded under, independent of any one memo URI — identical content
// from two different calls uploads once and resolves to the same path.
const ObjectsPrefix = "objects"

// EncodeRedirected is EncodeValue plus the redirection half of the
// contract pkg/serializer's package doc describes: a types.LargeObjectRef
// carrying pending Bytes is stripped down to its small reference before
// encoding, and its content is queued on deferred for upload to a
// content-addressed path instead of riding along inline. A
// types.SharedObjectRef is encoded as-is — it is caller-owned and never
// uploaded by this package. Everything else falls through to EncodeValue
// unchanged.
//
// The returned *types.BlobRef is non-nil only when a large object was
// (re)redirected this call, for the caller to fold into an Envelope's
// Sources.
func EncodeRedirected(path string, v any, store blobstore.Store, deferred *deferredwork.Pool) ([]byte, *types.BlobRef, error) {
	isRef, ref := Redirect(v)
	if !isRef {
		data, err := EncodeValue(path, v)
		return data, nil, err
	}

	switch r := ref.(type) {
	case types.LargeObjectRef:
		return encodeLargeObjectRef(path, r, store, deferred)
	case types.SharedObjectRef:
		data, err := EncodeValue(path, r)
		return data, nil, err
	default:
		data, err := EncodeValue(path, v)
		return data, nil, err
	}
}

func encodeLargeObjectRef(path string, r types.LargeObjectRef, store blobstore.Store, deferred *deferredwork.Pool) ([]byte, *types.BlobRef, error) {
	if len(r.Bytes) == 0 {
		if r.URI == "" {
			return nil, nil, &types.SerializationError{
				Path: path,
				Err:  fmt.Errorf("large object ref %q has neither bytes to upload nor a uri", r.LogicalName),
			}
		}
		// Already resolved by a prior encode of the same content; just
		// carry the reference through.
		data, err := EncodeValue(path, r)
		return data, nil, err
	}

	hash := ContentHash(r.Bytes)
	size := int64(len(r.Bytes))
	uri := fmt.Sprintf("%s/%s", ObjectsPrefix, hash)
	source := &types.BlobRef{URI: uri, ContentHash: hash, Size: size, ContentType: "application/octet-stream"}

	resolved := types.LargeObjectRef{ContentHash: hash, Size: size, LogicalName: r.LogicalName, URI: uri}
	data, err := EncodeValue(path, resolved)
	if err != nil {
		return nil, nil, err
	}

	body := append([]byte(nil), r.Bytes...)
	upload := func(ctx context.Context) error {
		if _, err := store.Head(ctx, uri); err == nil {
			return nil // another writer already uploaded this content
		} else if err != blobstore.ErrNotFound {
			return err
		}
		_, err := store.Put(ctx, uri, bytes.NewReader(body), "application/octet-stream")
		return err
	}

	if deferred == nil {
		if err := upload(context.Background()); err != nil {
			return nil, nil, fmt.Errorf("uploading large object %q: %w", r.LogicalName, err)
		}
		return data, source, nil
	}

	deferred.Submit(deferredwork.Job{
		Queue:    deferredwork.QueueUploadLargeObjects,
		DedupKey: hash,
		Fn:       upload,
	})
	return data, source, nil
}
