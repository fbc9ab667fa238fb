package remoteentry

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/deferredwork"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/memokey"
	"github.com/cuemby/mpr/pkg/memokey/humanencode"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

// Config carries what Execute needs beyond the blob store and memo URI:
// the lease driver to co-own, and how long the held lease should live
// while this run is in progress.
type Config struct {
	Lease    lease.Lease
	LeaseTTL time.Duration
	Extra    map[string]string // backend-supplied (containerd task id, agent id, ...)

	// Deferred uploads a returned types.LargeObjectRef's bytes to its
	// content-addressed path instead of blocking the run on the upload.
	// A nil Deferred falls back to uploading inline before the result is
	// written — still correct, just synchronous.
	Deferred *deferredwork.Pool
}

// Execute runs the eight-step remote-entry protocol for memoURI. writerID
// must already own memoURI's lease (the caller that dispatched this run).
func Execute(ctx context.Context, store blobstore.Store, memoURI types.MemoURI, writerID string, cfg Config) (types.ResultMetadata, error) {
	logger := log.WithMemoURI(string(memoURI))

	// Step 1: verify lock ownership.
	if cfg.Lease != nil {
		current, found, err := cfg.Lease.Current(ctx, memoURI)
		if err != nil {
			return types.ResultMetadata{}, fmt.Errorf("remoteentry: checking lease: %w", err)
		}
		if !found || current.WriterID != writerID {
			newWriter := ""
			if found {
				newWriter = current.WriterID
			}
			return types.ResultMetadata{}, &types.LockWasStolen{MemoURI: memoURI, PriorWriter: writerID, NewWriter: newWriter}
		}
	}

	// Step 2: fetch and deserialize the Thunk.
	thunk, err := fetchThunk(ctx, store, memoURI)
	if err != nil {
		return types.ResultMetadata{}, err
	}

	// Step 3: start lease maintenance as a co-owner for this run.
	stopHeartbeat := make(chan struct{})
	heartbeatDone := make(chan struct{})
	if cfg.Lease != nil && cfg.LeaseTTL > 0 {
		go maintainDuringRun(cfg.Lease, memoURI, writerID, cfg.LeaseTTL, stopHeartbeat, heartbeatDone)
	} else {
		close(heartbeatDone)
	}
	defer func() {
		close(stopHeartbeat)
		<-heartbeatDone
	}()

	runID := newRunID()
	started := time.Now()

	// Step 4-5: look up and invoke the registered function, capturing
	// panics as exceptions rather than crashing the process.
	reg, ok := memokey.Lookup(thunk.FuncRef)
	if !ok {
		return types.ResultMetadata{}, fmt.Errorf("remoteentry: no registration for func ref %q", thunk.FuncRef)
	}

	env := invoke(store, cfg.Deferred, reg, thunk, runID, started, cfg.Extra)

	// Step 6-7: write result/exception plus metadata sidecar.
	if err := writeOutcome(ctx, store, memoURI, runID, env); err != nil {
		return types.ResultMetadata{}, err
	}

	logger.Info().Str("run_id", runID).Str("exit_status", env.Metadata.ExitStatus).Msg("remote entry resolved")
	return env.Metadata, nil
}

func fetchThunk(ctx context.Context, store blobstore.Store, memoURI types.MemoURI) (*types.Thunk, error) {
	rc, _, err := store.Get(ctx, string(memoURI)+"/invocation")
	if err != nil {
		return nil, fmt.Errorf("remoteentry: fetching invocation: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("remoteentry: reading invocation: %w", err)
	}

	var thunk types.Thunk
	if err := serializer.DecodeValue("invocation", data, &thunk); err != nil {
		return nil, err
	}
	return &thunk, nil
}

func maintainDuringRun(l lease.Lease, memoURI types.MemoURI, writerID string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := lease.HeartbeatInterval(ttl)
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := l.Maintain(ctx, memoURI, writerID, ttl); err != nil {
				log.Logger.Warn().Err(err).Str("memo_uri", string(memoURI)).Msg("remote entry lease heartbeat failed")
			}
		}
	}
}

// invoke calls the registered function via reflection, decoding each gob
// argument into the matching parameter type, and returns an Envelope
// describing the outcome — never an error, since every failure mode
// (panic, returned error, argument mismatch) is captured into the
// Envelope's exception fields instead of propagated.
func invoke(store blobstore.Store, deferred *deferredwork.Pool, reg memokey.Registration, thunk *types.Thunk, runID string, started time.Time, extra map[string]string) *types.Envelope {
	env := &types.Envelope{Metadata: types.ResultMetadata{RunID: runID, StartedAt: started, Extra: extra}}

	defer func() {
		if r := recover(); r != nil {
			env.Kind = types.EnvelopeKindErr
			env.ExceptionType = "panic"
			env.ExceptionMessage = fmt.Sprintf("%v", r)
			env.Metadata.FinishedAt = time.Now()
			env.Metadata.Duration = env.Metadata.FinishedAt.Sub(started)
			env.Metadata.ExitStatus = "exception"
		}
	}()

	fnVal := reflect.ValueOf(reg.Fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		env.Kind = types.EnvelopeKindErr
		env.ExceptionType = "registration_error"
		env.ExceptionMessage = fmt.Sprintf("registered value for %q is not a function", reg.FuncID)
		env.Metadata.FinishedAt = time.Now()
		env.Metadata.ExitStatus = "exception"
		return env
	}

	args, err := decodeArgs(fnType, thunk.Args)
	if err != nil {
		env.Kind = types.EnvelopeKindErr
		env.ExceptionType = "argument_error"
		env.ExceptionMessage = err.Error()
		env.Metadata.FinishedAt = time.Now()
		env.Metadata.ExitStatus = "exception"
		return env
	}

	results := fnVal.Call(args)

	env.Metadata.FinishedAt = time.Now()
	env.Metadata.Duration = env.Metadata.FinishedAt.Sub(started)

	if lastErr, isErr := lastResultAsError(results); isErr {
		env.Kind = types.EnvelopeKindErr
		env.ExceptionType = "error"
		env.ExceptionMessage = lastErr.Error()
		env.Metadata.ExitStatus = "exception"
		return env
	}

	payload, source, encErr := encodeResults(store, deferred, results)
	if encErr != nil {
		env.Kind = types.EnvelopeKindErr
		env.ExceptionType = "serialization_error"
		env.ExceptionMessage = encErr.Error()
		env.Metadata.ExitStatus = "exception"
		return env
	}

	env.Kind = types.EnvelopeKindOK
	env.Payload = payload
	if source != nil {
		env.Sources = append(env.Sources, *source)
	}
	env.Metadata.OutputBytes = int64(len(payload))
	env.Metadata.ExitStatus = "ok"
	return env
}

func decodeArgs(fnType reflect.Type, encodedArgs [][]byte) ([]reflect.Value, error) {
	numIn := fnType.NumIn()
	if fnType.IsVariadic() {
		numIn--
	}
	if len(encodedArgs) < numIn {
		return nil, fmt.Errorf("remoteentry: function expects at least %d args, got %d", numIn, len(encodedArgs))
	}

	args := make([]reflect.Value, 0, len(encodedArgs))
	for i, encoded := range encodedArgs {
		paramType := fnType.In(i)
		if fnType.IsVariadic() && i >= numIn {
			paramType = fnType.In(numIn).Elem()
		}
		target := reflect.New(paramType)
		if err := serializer.DecodeValue(fmt.Sprintf("args[%d]", i), encoded, target.Interface()); err != nil {
			return nil, err
		}
		args = append(args, target.Elem())
	}
	return args, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func lastResultAsError(results []reflect.Value) (error, bool) {
	if len(results) == 0 {
		return nil, false
	}
	last := results[len(results)-1]
	if !last.Type().Implements(errType) {
		return nil, false
	}
	if last.IsNil() {
		return nil, false
	}
	return last.Interface().(error), true
}

// encodeResults encodes a function's non-error return values for storage
// as an Envelope payload. When the sole return value is a
// types.LargeObjectRef (or types.SharedObjectRef), serializer.EncodeRedirected
// redirects it rather than inlining its bytes; a large object nested
// inside a multi-value return is not auto-redirected — a function wanting
// that should return the ref as its only value.
func encodeResults(store blobstore.Store, deferred *deferredwork.Pool, results []reflect.Value) ([]byte, *types.BlobRef, error) {
	values := make([]any, 0, len(results))
	for _, r := range results {
		if r.Type() == errType {
			continue
		}
		values = append(values, r.Interface())
	}

	var v any
	if len(values) == 1 {
		v = values[0]
	} else {
		v = values
	}
	return serializer.EncodeRedirected("result", v, store, deferred)
}

func writeOutcome(ctx context.Context, store blobstore.Store, memoURI types.MemoURI, runID string, env *types.Envelope) error {
	data, err := serializer.EncodeEnvelope(env)
	if err != nil {
		return err
	}

	kind := types.ControlKindResult
	if env.Kind == types.EnvelopeKindErr {
		kind = types.ControlKindException
	}
	path := fmt.Sprintf("%s/%s/%s", memoURI, kind, runID)
	if _, err := store.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("remoteentry: writing %s: %w", kind, err)
	}

	metaData, err := serializer.EncodeValue("result-metadata", env.Metadata)
	if err != nil {
		return err
	}
	metaPath := fmt.Sprintf("%s/%s/%s", memoURI, types.ControlKindMetadata, runID)
	if _, err := store.Put(ctx, metaPath, bytes.NewReader(metaData), "application/octet-stream"); err != nil {
		return fmt.Errorf("remoteentry: writing result metadata: %w", err)
	}
	return nil
}

func newRunID() string {
	seed := make([]byte, 2)
	_, _ = rand.Read(seed)
	return fmt.Sprintf("%s-%s", time.Now().Format("0601021504"), humanencode.Encode(seed))
}
