package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"strings"

	"github.com/cuemby/mpr/pkg/types"
	bolt "go.etcd.io/bbolt"
)

func init() {
	Register("bbolt", newBoltStore)
}

var bucketBlobs = []byte("blobs")
var bucketContentTypes = []byte("content_types")

// boltStore keeps every blob in a single bbolt bucket keyed by URI path —
// adapted from the teacher's bucket-per-kind BoltStore, collapsed to one
// bucket since a BlobStore has no typed records, only opaque bytes.
type boltStore struct {
	db *bolt.DB
}

func newBoltStore(root *url.URL) (Store, error) {
	path := root.Path
	if path == "" {
		path = root.Opaque
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlobs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketContentTypes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Put(_ context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return types.BlobRef{}, err
	}
	sum := sha256.Sum256(data)

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlobs).Put([]byte(uri), data); err != nil {
			return err
		}
		if contentType != "" {
			return tx.Bucket(bucketContentTypes).Put([]byte(uri), []byte(contentType))
		}
		return nil
	})
	if err != nil {
		return types.BlobRef{}, err
	}

	return types.BlobRef{
		URI:         uri,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (s *boltStore) Get(_ context.Context, uri string) (io.ReadCloser, types.BlobRef, error) {
	ref, data, err := s.readRef(uri)
	if err != nil {
		return nil, types.BlobRef{}, err
	}
	return io.NopCloser(bytes.NewReader(data)), ref, nil
}

func (s *boltStore) Head(_ context.Context, uri string) (types.BlobRef, error) {
	ref, _, err := s.readRef(uri)
	return ref, err
}

func (s *boltStore) readRef(uri string) (types.BlobRef, []byte, error) {
	var (
		data        []byte
		contentType string
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlobs).Get([]byte(uri))
		if raw == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), raw...)
		if ct := tx.Bucket(bucketContentTypes).Get([]byte(uri)); ct != nil {
			contentType = string(ct)
		}
		return nil
	})
	if err != nil {
		return types.BlobRef{}, nil, err
	}
	sum := sha256.Sum256(data)
	return types.BlobRef{
		URI:         uri,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, data, nil
}

func (s *boltStore) List(_ context.Context, prefix string) ([]types.BlobRef, error) {
	var refs []types.BlobRef
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBlobs).Cursor()
		prefixBytes := []byte(prefix)
		for k, v := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			sum := sha256.Sum256(v)
			refs = append(refs, types.BlobRef{
				URI:         string(k),
				ContentHash: hex.EncodeToString(sum[:]),
				Size:        int64(len(v)),
			})
		}
		return nil
	})
	return refs, err
}

func (s *boltStore) Delete(_ context.Context, uri string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlobs).Delete([]byte(uri)); err != nil {
			return err
		}
		return tx.Bucket(bucketContentTypes).Delete([]byte(uri))
	})
}
