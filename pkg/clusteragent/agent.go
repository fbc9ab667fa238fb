// Package clusteragent runs the worker-side loop of cluster mode:
// register with a pkg/clustermanager, heartbeat on an interval, poll for
// assignments, and execute each one via pkg/remoteentry directly against
// the shared blob store — adapted from the teacher's pkg/worker
// register/heartbeat/poll-for-task loop (containerExecutorLoop), with
// "run a container" replaced by "run remoteentry.Execute."
package clusteragent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/clusterrpc"
	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/remoteentry"
	"github.com/cuemby/mpr/pkg/types"
)

// Config carries an Agent's tunables.
type Config struct {
	AgentID       string
	PollInterval  time.Duration
	MaxConcurrent int
	RemoteEntry   remoteentry.Config
}

// Agent is one worker-side participant in cluster mode.
type Agent struct {
	client *clusterrpc.Client
	store  blobstore.Store
	cfg    Config

	inFlight int32
	wg       sync.WaitGroup
	sem      chan struct{}
}

// New constructs an Agent. client and store are both long-lived and owned
// by the caller (cmd/mpr worker-agent); the Agent never closes either.
func New(client *clusterrpc.Client, store blobstore.Store, cfg Config) *Agent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Agent{
		client: client,
		store:  store,
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run registers with the manager and polls for work until ctx is
// canceled, blocking until every in-flight execution finishes.
func (a *Agent) Run(ctx context.Context) error {
	regResp, err := a.client.RegisterAgent(ctx, &clusterrpc.RegisterAgentRequest{AgentID: a.cfg.AgentID})
	if err != nil {
		return err
	}
	heartbeatEvery := time.Duration(regResp.HeartbeatIntervalSeconds) * time.Second
	if heartbeatEvery <= 0 {
		heartbeatEvery = 5 * time.Second
	}

	heartbeatTicker := time.NewTicker(heartbeatEvery)
	defer heartbeatTicker.Stop()
	pollTicker := time.NewTicker(a.cfg.PollInterval)
	defer pollTicker.Stop()

	logger := log.WithAgentID(a.cfg.AgentID)
	logger.Info().Msg("cluster agent started")

	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return nil
		case <-heartbeatTicker.C:
			if _, err := a.client.Heartbeat(ctx, &clusterrpc.HeartbeatRequest{
				AgentID:       a.cfg.AgentID,
				InFlightCalls: int(atomic.LoadInt32(&a.inFlight)),
			}); err != nil {
				logger.Warn().Err(err).Msg("heartbeat failed")
			}
		case <-pollTicker.C:
			a.pollOnce(ctx, logger)
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context, logger zerolog.Logger) {
	select {
	case a.sem <- struct{}{}:
	default:
		return // already at MaxConcurrent, try again next tick
	}

	resp, err := a.client.PollAssignment(ctx, &clusterrpc.PollAssignmentRequest{AgentID: a.cfg.AgentID})
	if err != nil {
		<-a.sem
		logger.Warn().Err(err).Msg("poll assignment failed")
		return
	}
	if !resp.Available {
		<-a.sem
		return
	}

	a.wg.Add(1)
	atomic.AddInt32(&a.inFlight, 1)
	go func() {
		defer a.wg.Done()
		defer atomic.AddInt32(&a.inFlight, -1)
		defer func() { <-a.sem }()
		a.execute(ctx, logger, types.MemoURI(resp.MemoURI), resp.WriterID)
	}()
}

func (a *Agent) execute(ctx context.Context, logger zerolog.Logger, memoURI types.MemoURI, writerID string) {
	_, err := remoteentry.Execute(ctx, a.store, memoURI, writerID, a.cfg.RemoteEntry)
	if err != nil {
		logger.Warn().Err(err).Str("memo_uri", string(memoURI)).Msg("remote-entry execution failed")
	}
}
