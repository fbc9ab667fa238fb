package security

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/types"
)

// EncryptingStore wraps a blobstore.Store so every Put encrypts its body
// with the cluster's SecretsManager before the underlying driver ever sees
// it, and every Get decrypts transparently — for operators whose
// invocation arguments or results carry sensitive data and who don't trust
// the backing driver (postgres, redis, a shared NFS mount) at rest.
//
// The BlobRef content hash the underlying driver computes is over the
// ciphertext, not the plaintext — callers comparing hashes across an
// encrypted and unencrypted store will not get a match, which is expected:
// the hash is a storage integrity check, not a content-addressing identity
// this layer promises to preserve end to end.
type EncryptingStore struct {
	inner blobstore.Store
	sm    *SecretsManager
}

// NewEncryptingStore wraps inner with AES-256-GCM encryption driven by key
// (32 bytes — see DeriveKeyFromClusterID).
func NewEncryptingStore(inner blobstore.Store, key []byte) (*EncryptingStore, error) {
	sm, err := NewSecretsManager(key)
	if err != nil {
		return nil, fmt.Errorf("security: building encrypting store: %w", err)
	}
	return &EncryptingStore{inner: inner, sm: sm}, nil
}

func (s *EncryptingStore) Put(ctx context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error) {
	plaintext, err := io.ReadAll(body)
	if err != nil {
		return types.BlobRef{}, err
	}
	// Head objects (locks, invocations) can be empty; nothing to protect.
	if len(plaintext) == 0 {
		return s.inner.Put(ctx, uri, bytes.NewReader(plaintext), contentType)
	}
	ciphertext, err := s.sm.EncryptSecret(plaintext)
	if err != nil {
		return types.BlobRef{}, fmt.Errorf("security: encrypting blob %s: %w", uri, err)
	}
	return s.inner.Put(ctx, uri, bytes.NewReader(ciphertext), contentType)
}

func (s *EncryptingStore) Get(ctx context.Context, uri string) (io.ReadCloser, types.BlobRef, error) {
	rc, ref, err := s.inner.Get(ctx, uri)
	if err != nil {
		return nil, types.BlobRef{}, err
	}
	defer rc.Close()

	ciphertext, err := io.ReadAll(rc)
	if err != nil {
		return nil, types.BlobRef{}, err
	}
	if len(ciphertext) == 0 {
		return io.NopCloser(bytes.NewReader(ciphertext)), ref, nil
	}
	plaintext, err := s.sm.DecryptSecret(ciphertext)
	if err != nil {
		return nil, types.BlobRef{}, fmt.Errorf("security: decrypting blob %s: %w", uri, err)
	}
	return io.NopCloser(bytes.NewReader(plaintext)), ref, nil
}

// Head returns the underlying driver's metadata unchanged — size and
// content hash describe the stored ciphertext, not the plaintext.
func (s *EncryptingStore) Head(ctx context.Context, uri string) (types.BlobRef, error) {
	return s.inner.Head(ctx, uri)
}

func (s *EncryptingStore) List(ctx context.Context, prefix string) ([]types.BlobRef, error) {
	return s.inner.List(ctx, prefix)
}

func (s *EncryptingStore) Delete(ctx context.Context, uri string) error {
	return s.inner.Delete(ctx, uri)
}

var _ blobstore.Store = (*EncryptingStore)(nil)
