package blobstore

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/cuemby/mpr/pkg/types"
)

// RetryPolicy bounds how Put/Get/Head/List/Delete recover from transient
// backend failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes up to three attempts (two retries) with jittered
// exponential backoff starting at 50ms, capped at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}

type retryingStore struct {
	inner  Store
	policy RetryPolicy
}

// WithRetry wraps a Store so that transient errors are retried internally
// per policy before surfacing to the caller as a *types.TransientError.
func WithRetry(inner Store, policy RetryPolicy) Store {
	return &retryingStore{inner: inner, policy: policy}
}

func (s *retryingStore) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == s.policy.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.policy.delay(attempt)):
		}
	}
	return &types.TransientError{Op: op, Err: lastErr}
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTooLarge) {
		return false
	}
	var hashErr *types.HashMismatch
	return !errors.As(err, &hashErr)
}

func (s *retryingStore) Put(ctx context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error) {
	var ref types.BlobRef
	err := s.retry(ctx, "put", func() error {
		var innerErr error
		ref, innerErr = s.inner.Put(ctx, uri, body, contentType)
		return innerErr
	})
	return ref, err
}

func (s *retryingStore) Get(ctx context.Context, uri string) (io.ReadCloser, types.BlobRef, error) {
	var (
		rc  io.ReadCloser
		ref types.BlobRef
	)
	err := s.retry(ctx, "get", func() error {
		var innerErr error
		rc, ref, innerErr = s.inner.Get(ctx, uri)
		return innerErr
	})
	return rc, ref, err
}

func (s *retryingStore) Head(ctx context.Context, uri string) (types.BlobRef, error) {
	var ref types.BlobRef
	err := s.retry(ctx, "head", func() error {
		var innerErr error
		ref, innerErr = s.inner.Head(ctx, uri)
		return innerErr
	})
	return ref, err
}

func (s *retryingStore) List(ctx context.Context, prefix string) ([]types.BlobRef, error) {
	var refs []types.BlobRef
	err := s.retry(ctx, "list", func() error {
		var innerErr error
		refs, innerErr = s.inner.List(ctx, prefix)
		return innerErr
	})
	return refs, err
}

func (s *retryingStore) Delete(ctx context.Context, uri string) error {
	return s.retry(ctx, "delete", func() error {
		return s.inner.Delete(ctx, uri)
	})
}
