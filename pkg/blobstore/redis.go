package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"

	"github.com/cuemby/mpr/pkg/types"
	"github.com/redis/go-redis/v9"
)

func init() {
	Register("redis", newRedisStore)
}

// redisMaxObjectBytes bounds what the redis driver will accept. Control
// files (locks, result-metadata sidecars) are small and benefit from
// redis's latency; large payloads belong in a blob-capable backend.
const redisMaxObjectBytes = 1 << 20 // 1MiB

type redisStore struct {
	client *redis.Client
}

func newRedisStore(root *url.URL) (Store, error) {
	opts, err := redis.ParseURL(root.String())
	if err != nil {
		return nil, err
	}
	return &redisStore{client: redis.NewClient(opts)}, nil
}

func (s *redisStore) Put(ctx context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error) {
	data, err := io.ReadAll(io.LimitReader(body, redisMaxObjectBytes+1))
	if err != nil {
		return types.BlobRef{}, err
	}
	if len(data) > redisMaxObjectBytes {
		return types.BlobRef{}, ErrTooLarge
	}

	if err := s.client.Set(ctx, dataKey(uri), data, 0).Err(); err != nil {
		return types.BlobRef{}, err
	}
	if contentType != "" {
		if err := s.client.Set(ctx, ctKey(uri), contentType, 0).Err(); err != nil {
			return types.BlobRef{}, err
		}
	}

	sum := sha256.Sum256(data)
	return types.BlobRef{URI: uri, ContentHash: hex.EncodeToString(sum[:]), Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *redisStore) Get(ctx context.Context, uri string) (io.ReadCloser, types.BlobRef, error) {
	ref, data, err := s.readRef(ctx, uri)
	if err != nil {
		return nil, types.BlobRef{}, err
	}
	return io.NopCloser(bytes.NewReader(data)), ref, nil
}

func (s *redisStore) Head(ctx context.Context, uri string) (types.BlobRef, error) {
	ref, _, err := s.readRef(ctx, uri)
	return ref, err
}

func (s *redisStore) readRef(ctx context.Context, uri string) (types.BlobRef, []byte, error) {
	data, err := s.client.Get(ctx, dataKey(uri)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.BlobRef{}, nil, ErrNotFound
	}
	if err != nil {
		return types.BlobRef{}, nil, err
	}

	contentType, err := s.client.Get(ctx, ctKey(uri)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return types.BlobRef{}, nil, err
	}

	sum := sha256.Sum256(data)
	return types.BlobRef{URI: uri, ContentHash: hex.EncodeToString(sum[:]), Size: int64(len(data)), ContentType: contentType}, data, nil
}

func (s *redisStore) List(ctx context.Context, prefix string) ([]types.BlobRef, error) {
	var refs []types.BlobRef
	iter := s.client.Scan(ctx, 0, dataKey(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		uri := stripDataKey(iter.Val())
		ref, err := s.Head(ctx, uri)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, iter.Err()
}

func (s *redisStore) Delete(ctx context.Context, uri string) error {
	return s.client.Del(ctx, dataKey(uri), ctKey(uri)).Err()
}

func dataKey(uri string) string { return "mpr:blob:" + uri }
func ctKey(uri string) string   { return "mpr:ct:" + uri }
func stripDataKey(key string) string {
	const prefix = "mpr:blob:"
	if len(key) >= len(prefix) {
		return key[len(prefix):]
	}
	return key
}
