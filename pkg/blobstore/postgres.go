package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/mpr/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	Register("postgres", newPostgresStore)
}

// postgresStore persists blobs in a single table, connection-pooled via
// pgx/v5. Suited to deployments that already run a managed postgres
// instance for every other piece of state and would rather not add a
// second storage technology just for memoized results.
type postgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS mpr_blobs (
	uri text PRIMARY KEY,
	content_type text,
	body bytea NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

func newPostgresStore(root *url.URL) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, root.String())
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Put(ctx context.Context, uri string, body io.Reader, contentType string) (types.BlobRef, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return types.BlobRef{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO mpr_blobs (uri, content_type, body, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (uri) DO UPDATE SET content_type = $2, body = $3, updated_at = now()`,
		uri, contentType, data)
	if err != nil {
		return types.BlobRef{}, err
	}
	sum := sha256.Sum256(data)
	return types.BlobRef{URI: uri, ContentHash: hex.EncodeToString(sum[:]), Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *postgresStore) Get(ctx context.Context, uri string) (io.ReadCloser, types.BlobRef, error) {
	var (
		body        []byte
		contentType string
	)
	err := s.pool.QueryRow(ctx, `SELECT content_type, body FROM mpr_blobs WHERE uri = $1`, uri).Scan(&contentType, &body)
	if err != nil {
		return nil, types.BlobRef{}, translatePgErr(err)
	}
	sum := sha256.Sum256(body)
	ref := types.BlobRef{URI: uri, ContentHash: hex.EncodeToString(sum[:]), Size: int64(len(body)), ContentType: contentType}
	return io.NopCloser(bytes.NewReader(body)), ref, nil
}

func (s *postgresStore) Head(ctx context.Context, uri string) (types.BlobRef, error) {
	var (
		contentType string
		size        int64
	)
	err := s.pool.QueryRow(ctx, `SELECT content_type, length(body) FROM mpr_blobs WHERE uri = $1`, uri).Scan(&contentType, &size)
	if err != nil {
		return types.BlobRef{}, translatePgErr(err)
	}
	return types.BlobRef{URI: uri, Size: size, ContentType: contentType}, nil
}

func (s *postgresStore) List(ctx context.Context, prefix string) ([]types.BlobRef, error) {
	rows, err := s.pool.Query(ctx, `SELECT uri, content_type, length(body) FROM mpr_blobs WHERE uri LIKE $1`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []types.BlobRef
	for rows.Next() {
		var ref types.BlobRef
		if err := rows.Scan(&ref.URI, &ref.ContentType, &ref.Size); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(ref.URI, prefix) {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *postgresStore) Delete(ctx context.Context, uri string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM mpr_blobs WHERE uri = $1`, uri)
	return err
}

func translatePgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
