package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/mpr/pkg/types"
)

func init() {
	Register("file", newLocalStore)
}

// localStore lays objects out directly under root, mirroring the URI path.
// A small ".ct" sidecar per object records its content type.
type localStore struct {
	root string
}

func newLocalStore(root *url.URL) (Store, error) {
	path := root.Path
	if path == "" {
		path = root.Opaque
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &localStore{root: path}, nil
}

func (s *localStore) resolve(uri string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(uri, "/")))
}

func (s *localStore) Put(_ context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error) {
	path := s.resolve(uri)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.BlobRef{}, err
	}

	hasher := sha256.New()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return types.BlobRef{}, err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, io.TeeReader(body, hasher))
	if err != nil {
		tmp.Close()
		return types.BlobRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return types.BlobRef{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return types.BlobRef{}, err
	}

	ref := types.BlobRef{
		URI:         uri,
		ContentHash: hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
		ContentType: contentType,
	}
	if contentType != "" {
		_ = os.WriteFile(path+".ct", []byte(contentType), 0o644)
	}
	return ref, nil
}

func (s *localStore) Get(_ context.Context, uri string) (io.ReadCloser, types.BlobRef, error) {
	path := s.resolve(uri)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.BlobRef{}, ErrNotFound
		}
		return nil, types.BlobRef{}, err
	}
	ref, err := s.statRef(uri, path)
	if err != nil {
		f.Close()
		return nil, types.BlobRef{}, err
	}
	return f, ref, nil
}

func (s *localStore) Head(_ context.Context, uri string) (types.BlobRef, error) {
	path := s.resolve(uri)
	return s.statRef(uri, path)
}

func (s *localStore) statRef(uri, path string) (types.BlobRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.BlobRef{}, ErrNotFound
		}
		return types.BlobRef{}, err
	}

	hash, err := hashFile(path)
	if err != nil {
		return types.BlobRef{}, err
	}

	contentType := ""
	if ctBytes, err := os.ReadFile(path + ".ct"); err == nil {
		contentType = string(ctBytes)
	}

	return types.BlobRef{
		URI:         uri,
		ContentHash: hash,
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *localStore) List(_ context.Context, prefix string) ([]types.BlobRef, error) {
	base := s.resolve(prefix)
	var refs []types.BlobRef
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".ct") {
			return nil
		}
		if !strings.HasPrefix(path, base) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		uri := "/" + filepath.ToSlash(rel)
		ref, err := s.statRef(uri, path)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		return nil
	})
	return refs, err
}

func (s *localStore) Delete(_ context.Context, uri string) error {
	path := s.resolve(uri)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(path + ".ct")
	return nil
}
