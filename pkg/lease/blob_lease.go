package lease

import (
	"bytes"
	"context"
	"time"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

// BlobLease is the default Lease driver: ownership of a memo URI is just
// the "lock" control file recorded under it, read and written through the
// same BlobStore as everything else. It is best-effort because two
// writers can race the same Put before either sees the other's attempt;
// the confirm-delay reduces but does not eliminate that window, matching
// the spec's explicit non-goal of strong mutual exclusion.
type BlobLease struct {
	store        blobstore.Store
	confirmDelay time.Duration
}

// NewBlobLease constructs a BlobLease over store. A zero confirmDelay uses
// DefaultConfirmDelay.
func NewBlobLease(store blobstore.Store, confirmDelay time.Duration) *BlobLease {
	if confirmDelay <= 0 {
		confirmDelay = DefaultConfirmDelay
	}
	return &BlobLease{store: store, confirmDelay: confirmDelay}
}

func lockPath(memoURI types.MemoURI) string {
	return string(memoURI) + "/lock"
}

func (l *BlobLease) TryAcquire(ctx context.Context, memoURI types.MemoURI, writerID string, ttl time.Duration) (types.Lease, bool, error) {
	if current, found, err := l.Current(ctx, memoURI); err != nil {
		return types.Lease{}, false, err
	} else if found && !current.Expired(time.Now()) && current.WriterID != writerID {
		return current, false, nil
	}

	lease := types.Lease{MemoURI: memoURI, WriterID: writerID, WrittenAt: time.Now(), TTL: ttl}
	if err := l.write(ctx, lease); err != nil {
		return types.Lease{}, false, err
	}

	select {
	case <-time.After(l.confirmDelay):
	case <-ctx.Done():
		return types.Lease{}, false, ctx.Err()
	}

	confirmed, found, err := l.Current(ctx, memoURI)
	if err != nil {
		return types.Lease{}, false, err
	}
	if !found || confirmed.WriterID != writerID {
		return confirmed, false, nil
	}
	return confirmed, true, nil
}

func (l *BlobLease) Maintain(ctx context.Context, memoURI types.MemoURI, writerID string, ttl time.Duration) error {
	current, found, err := l.Current(ctx, memoURI)
	if err != nil {
		return err
	}
	if !found || current.WriterID != writerID {
		newWriter := ""
		if found {
			newWriter = current.WriterID
		}
		return &types.LockWasStolen{MemoURI: memoURI, PriorWriter: writerID, NewWriter: newWriter}
	}

	renewed := types.Lease{MemoURI: memoURI, WriterID: writerID, WrittenAt: time.Now(), TTL: ttl}
	return l.write(ctx, renewed)
}

func (l *BlobLease) Release(ctx context.Context, memoURI types.MemoURI, writerID string) error {
	current, found, err := l.Current(ctx, memoURI)
	if err != nil {
		return err
	}
	if !found || current.WriterID != writerID {
		return nil
	}
	return l.store.Delete(ctx, lockPath(memoURI))
}

func (l *BlobLease) Current(ctx context.Context, memoURI types.MemoURI) (types.Lease, bool, error) {
	rc, _, err := l.store.Get(ctx, lockPath(memoURI))
	if err != nil {
		if err == blobstore.ErrNotFound {
			return types.Lease{}, false, nil
		}
		return types.Lease{}, false, err
	}
	defer rc.Close()

	var payload types.Lease
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(rc); err != nil {
		return types.Lease{}, false, err
	}
	if err := serializer.DecodeValue("lock", buf.Bytes(), &payload); err != nil {
		return types.Lease{}, false, err
	}
	return payload, true, nil
}

func (l *BlobLease) write(ctx context.Context, lease types.Lease) error {
	data, err := serializer.EncodeValue("lock", lease)
	if err != nil {
		return err
	}
	_, err = l.store.Put(ctx, lockPath(lease.MemoURI), bytes.NewReader(data), "application/octet-stream")
	return err
}
