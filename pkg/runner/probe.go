package runner

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

// probeResult looks for the newest result/<run_id> or exception/<run_id>
// object under memoURI. run_id's YYMMDDHHmm-TwoWords prefix sorts
// lexically in chronological order, so "newest" is just "greatest by
// string comparison" across both queues combined — a run_id is unique to
// one execution and lands in exactly one of the two.
func probeResult(ctx context.Context, store blobstore.Store, memoURI types.MemoURI) (*types.Envelope, bool, error) {
	resultRefs, err := store.List(ctx, string(memoURI)+"/"+string(types.ControlKindResult)+"/")
	if err != nil {
		return nil, false, err
	}
	exceptionRefs, err := store.List(ctx, string(memoURI)+"/"+string(types.ControlKindException)+"/")
	if err != nil {
		return nil, false, err
	}

	all := append(resultRefs, exceptionRefs...)
	if len(all) == 0 {
		return nil, false, nil
	}

	sort.Slice(all, func(i, j int) bool { return runIDFromURI(all[i].URI) < runIDFromURI(all[j].URI) })
	newest := all[len(all)-1]

	rc, _, err := store.Get(ctx, newest.URI)
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}

	env, err := serializer.DecodeEnvelope(data)
	if err != nil {
		return nil, false, err
	}
	return env, true, nil
}

// runIDFromURI extracts the trailing path segment ("run_id") from a
// result/exception object's URI.
func runIDFromURI(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return uri
	}
	return uri[idx+1:]
}
