package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/deferredwork"
	"github.com/cuemby/mpr/pkg/events"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/memokey"
	"github.com/cuemby/mpr/pkg/metrics"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/shim"
	"github.com/cuemby/mpr/pkg/types"
)

// Config carries the per-process tunables pkg/config.Config maps onto.
type Config struct {
	RunnerPrefix      string
	LeaseTTL          time.Duration
	MaintainLocks     bool
	RequireAllResults bool
	WaitBudget        time.Duration // bound on time spent waiting for a contended lease
}

// CallInput describes one call to Submit.
type CallInput struct {
	FuncID        string
	PipelineID    string
	EncodedArgs   [][]byte
	EncodedKwargs map[string][]byte
	Calls         []types.CallRef // sub-function (argName, funcID, logicKey) triples folded into the hash
}

// Runner composes MemoKey, BlobStore, Lease, and Shim into the call
// protocol. One Runner is shared by every Submit call in a process.
type Runner struct {
	store    blobstore.Store
	lease    lease.Lease
	shim     shim.Shim
	deferred *deferredwork.Pool
	broker   *events.Broker
	sched    *lease.Scheduler
	cfg      Config
	writerID string
}

// New constructs a Runner. writerID identifies this process as a lease
// holder; callers typically pass a random uuid unique per process.
func New(store blobstore.Store, leaseDriver lease.Lease, shimBackend shim.Shim, deferred *deferredwork.Pool, broker *events.Broker, cfg Config) *Runner {
	if cfg.RunnerPrefix == "" {
		cfg.RunnerPrefix = "mops2-mpf"
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	return &Runner{
		store:    store,
		lease:    leaseDriver,
		shim:     shimBackend,
		deferred: deferred,
		broker:   broker,
		sched:    lease.NewScheduler(leaseDriver, cfg.LeaseTTL),
		cfg:      cfg,
		writerID: uuid.NewString(),
	}
}

// Submit starts the call protocol in a goroutine and returns a Future
// that resolves to the call's outcome.
func (r *Runner) Submit(ctx context.Context, in CallInput) *Future {
	future := newFuture()
	go func() {
		value, metadata, err := r.run(ctx, in)
		future.resolve(value, metadata, err)
	}()
	return future
}

func (r *Runner) run(ctx context.Context, in CallInput) ([]byte, types.ResultMetadata, error) {
	timer := metrics.NewTimer()

	for {
		memoURI, thunk, err := memokey.Derive(memokey.DeriveInput{
			RunnerPrefix:  r.cfg.RunnerPrefix,
			PipelineID:    in.PipelineID,
			FuncID:        in.FuncID,
			EncodedArgs:   in.EncodedArgs,
			EncodedKwargs: in.EncodedKwargs,
			Calls:         in.Calls,
		})
		if err != nil {
			return nil, types.ResultMetadata{}, err
		}

		value, metadata, again, err := r.runOnce(ctx, memoURI, thunk, timer)
		if again {
			continue
		}
		return value, metadata, err
	}
}

// runOnce executes steps 2-8 of the call protocol for a derived memo URI.
// again is true when the caller should restart from a fresh probe (the
// LockWasStolen cooperative retry).
func (r *Runner) runOnce(ctx context.Context, memoURI types.MemoURI, thunk *types.Thunk, timer *metrics.Timer) (value []byte, metadata types.ResultMetadata, again bool, err error) {
	logger := log.WithMemoURI(string(memoURI))

	// Step 2: fast_result_probe.
	if env, hit, perr := probeResult(ctx, r.store, memoURI); perr != nil {
		return nil, types.ResultMetadata{}, false, perr
	} else if hit {
		r.publish(events.EventCallHit, memoURI, "")
		metrics.CallsTotal.WithLabelValues("hit").Inc()
		timer.ObserveDurationVec(metrics.CallLatency, "hit")
		hitValue, hitMetadata, hitErr := outcomeFromEnvelope(env)
		return hitValue, hitMetadata, false, hitErr
	}

	if r.cfg.RequireAllResults {
		metrics.CallsTotal.WithLabelValues("required_missing").Inc()
		return nil, types.ResultMetadata{}, false, &types.RequiredResultMissing{MemoURI: memoURI}
	}

	// Step 3-4: serialize and write the invocation (idempotent).
	if err := r.writeInvocation(ctx, memoURI, thunk); err != nil {
		return nil, types.ResultMetadata{}, false, err
	}

	// Step 5: lease.
	var stolenCh <-chan struct{}
	if r.cfg.MaintainLocks {
		stolen, werr := r.acquireLease(ctx, memoURI)
		if werr != nil {
			return nil, types.ResultMetadata{}, false, werr
		}
		if stolen {
			logger.Info().Msg("lock contended, retrying from probe")
			return nil, types.ResultMetadata{}, true, nil
		}
		stolenCh = r.sched.Register(memoURI, r.writerID)
		defer r.sched.Unregister(memoURI)
		defer r.lease.Release(ctx, memoURI, r.writerID)
	}

	// Step 6: dispatch.
	r.publish(events.EventCallDispatched, memoURI, "")
	future, derr := r.shim.Dispatch(ctx, memoURI, r.writerID)
	if derr != nil {
		metrics.DispatchesTotal.WithLabelValues(r.shim.Name(), "error").Inc()
		return nil, types.ResultMetadata{}, false, &types.DispatchFailed{MemoURI: memoURI, Reason: derr.Error(), Err: derr}
	}

	dispatchTimer := metrics.NewTimer()
	runMetadata, werr := waitForOutcome(ctx, future, stolenCh)
	dispatchTimer.ObserveDurationVec(metrics.DispatchLatency, r.shim.Name())

	// Step 8: cooperative lock-stolen signal, whether reported by the
	// shim's Wait or noticed independently during heartbeat maintenance.
	var lockStolen *types.LockWasStolen
	if asLockWasStolen(werr, &lockStolen) || errorsIsStolen(werr) {
		msg := ""
		if lockStolen != nil {
			msg = lockStolen.Error()
		}
		r.publish(events.EventCallLockStolen, memoURI, msg)
		metrics.LeaseStolenTotal.Inc()
		return nil, types.ResultMetadata{}, true, nil
	}
	if werr != nil {
		metrics.DispatchesTotal.WithLabelValues(r.shim.Name(), "error").Inc()
		return nil, types.ResultMetadata{}, false, werr
	}
	metrics.DispatchesTotal.WithLabelValues(r.shim.Name(), "ok").Inc()

	// Step 7: probe for the written outcome.
	env, hit, perr := probeResult(ctx, r.store, memoURI)
	if perr != nil {
		return nil, types.ResultMetadata{}, false, perr
	}
	if !hit {
		r.publish(events.EventCallCrashed, memoURI, "no result written before lease expired")
		return nil, types.ResultMetadata{}, false, &types.ResultMissingError{
			MemoURI: memoURI,
			Err:     &types.RemoteCrashed{MemoURI: memoURI, RunID: runMetadata.RunID},
		}
	}

	r.publish(events.EventCallResolved, memoURI, string(env.Kind))
	outcome := "ok"
	if env.Kind == types.EnvelopeKindErr {
		outcome = "exception"
	}
	metrics.CallsTotal.WithLabelValues(outcome).Inc()
	timer.ObserveDurationVec(metrics.CallLatency, outcome)

	value, metadata, err = outcomeFromEnvelope(env)
	return value, metadata, false, err
}

// acquireLease loops try_acquire until granted, bounded by WaitBudget,
// re-probing for a result between waits in case a competing writer
// finishes first. Returns stolen=true when such a re-probe finds a
// result, or when another writer still holds the lock once WaitBudget is
// exhausted — callers treat both the same as a cooperative LockWasStolen
// retry.
func (r *Runner) acquireLease(ctx context.Context, memoURI types.MemoURI) (stolen bool, err error) {
	deadline := time.Now().Add(r.cfg.WaitBudget)
	for {
		current, granted, err := r.lease.TryAcquire(ctx, memoURI, r.writerID, r.cfg.LeaseTTL)
		if err != nil {
			metrics.LeaseAcquisitionsTotal.WithLabelValues("error").Inc()
			return false, err
		}
		if granted {
			metrics.LeaseAcquisitionsTotal.WithLabelValues("granted").Inc()
			return false, nil
		}
		metrics.LeaseAcquisitionsTotal.WithLabelValues("refused").Inc()

		if _, hit, perr := probeResult(ctx, r.store, memoURI); perr == nil && hit {
			return true, nil
		}

		if r.cfg.WaitBudget > 0 && time.Now().After(deadline) {
			return true, nil
		}

		wait := current.TTL
		if wait <= 0 || wait > r.cfg.LeaseTTL {
			wait = r.cfg.LeaseTTL
		}
		if r.cfg.WaitBudget > 0 && wait > r.cfg.WaitBudget {
			wait = r.cfg.WaitBudget
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// EncodeArgument encodes v for inclusion in a CallInput's EncodedArgs or
// EncodedKwargs. A v satisfying types.LargeObjectRef's or
// types.SharedObjectRef's shape is redirected per pkg/serializer's
// contract rather than inlined, so oversized call arguments never ride
// along inside the invocation blob written by writeInvocation.
func (r *Runner) EncodeArgument(path string, v any) ([]byte, error) {
	data, _, err := serializer.EncodeRedirected(path, v, r.store, r.deferred)
	return data, err
}

func (r *Runner) writeInvocation(ctx context.Context, memoURI types.MemoURI, thunk *types.Thunk) error {
	path := string(memoURI) + "/invocation"
	if _, err := r.store.Head(ctx, path); err == nil {
		return nil // already written, immutable thereafter
	} else if err != blobstore.ErrNotFound {
		return err
	}

	data, err := serializer.EncodeValue("invocation", *thunk)
	if err != nil {
		return err
	}
	_, err = r.store.Put(ctx, path, bytes.NewReader(data), "application/octet-stream")
	return err
}

func (r *Runner) publish(eventType events.EventType, memoURI types.MemoURI, message string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{Type: eventType, MemoURI: memoURI, Message: message})
}

func outcomeFromEnvelope(env *types.Envelope) ([]byte, types.ResultMetadata, error) {
	if env.Kind == types.EnvelopeKindErr {
		return nil, env.Metadata, fmt.Errorf("%s: %s", env.ExceptionType, env.ExceptionMessage)
	}
	return env.Payload, env.Metadata, nil
}

func asLockWasStolen(err error, target **types.LockWasStolen) bool {
	if err == nil {
		return false
	}
	stolen, ok := err.(*types.LockWasStolen)
	if ok {
		*target = stolen
	}
	return ok
}

// errStolenDuringWait is a private sentinel waitForOutcome returns when
// stolenCh closes before the shim's future resolves; it carries no detail
// beyond "stop trusting this lease", so runOnce treats it identically to a
// *types.LockWasStolen reported by the shim itself.
var errStolenDuringWait = fmt.Errorf("lease stolen while awaiting dispatch result")

func errorsIsStolen(err error) bool {
	return err == errStolenDuringWait
}

// waitForOutcome waits for the shim's future while also watching
// stolenCh, so a lease stolen mid-dispatch (noticed by the shared
// Scheduler's heartbeat, independent of whatever the remote side reports)
// cuts the wait short instead of blocking until the shim's own timeout.
func waitForOutcome(ctx context.Context, future shim.PFuture, stolenCh <-chan struct{}) (types.ResultMetadata, error) {
	if stolenCh == nil {
		return future.Wait(ctx)
	}

	type outcome struct {
		metadata types.ResultMetadata
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		metadata, err := future.Wait(ctx)
		done <- outcome{metadata, err}
	}()

	select {
	case o := <-done:
		return o.metadata, o.err
	case <-stolenCh:
		return types.ResultMetadata{}, errStolenDuringWait
	}
}

var _ io.Closer = (*Runner)(nil)

// Close stops the Runner's heartbeat Scheduler and deferred-work pool.
// The BlobStore, Lease driver, and Shim are owned by the caller and may
// outlive this Runner.
func (r *Runner) Close() error {
	r.sched.Stop()
	if r.deferred != nil {
		r.deferred.Stop()
	}
	return nil
}
