package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/cuemby/mpr/pkg/types"
)

// ErrNotFound is returned by Get/Head when no object exists at a URI.
var ErrNotFound = errors.New("blobstore: object not found")

// ErrTooLarge is returned by drivers (notably redis) that refuse payloads
// above a size limit, directing callers to a blob-capable backend instead.
var ErrTooLarge = errors.New("blobstore: object exceeds backend size limit")

// Store is the content-addressed object store every mpr component reads
// and writes memo state through.
type Store interface {
	// Put writes body at uri, returning the resulting BlobRef (including
	// the computed content hash).
	Put(ctx context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error)

	// Get returns the object at uri. Callers must Close the reader.
	Get(ctx context.Context, uri string) (io.ReadCloser, types.BlobRef, error)

	// Head returns metadata for uri without reading its body.
	Head(ctx context.Context, uri string) (types.BlobRef, error)

	// List returns every object whose URI has the given prefix.
	List(ctx context.Context, prefix string) ([]types.BlobRef, error)

	// Delete removes the object at uri. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, uri string) error
}
