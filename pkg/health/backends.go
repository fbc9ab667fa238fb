package health

import (
	"context"
	"time"

	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/metrics"
)

// Monitor periodically runs a named Checker and mirrors its result into
// pkg/metrics' readiness registry, so /ready reflects real backend
// reachability rather than process liveness alone.
type Monitor struct {
	name    string
	checker Checker
	cfg     Config
	stopCh  chan struct{}
}

// NewMonitor wires checker under name (one of the components pkg/metrics'
// GetReadiness treats as critical: "blobstore", "lease", "shim").
func NewMonitor(name string, checker Checker, cfg Config) *Monitor {
	return &Monitor{name: name, checker: checker, cfg: cfg, stopCh: make(chan struct{})}
}

// Start runs an immediate check, then repeats every cfg.Interval until
// Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop ends the monitor's check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) run(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	result := m.checker.Check(checkCtx)
	metrics.RegisterComponent(m.name, result.Healthy, result.Message)
	if !result.Healthy {
		log.Logger.Warn().Str("component", m.name).Str("message", result.Message).Msg("health check failed")
	}
}

// NewBlobStoreMonitor builds a TCP reachability check against a
// postgres or redis BlobStore backend's address.
func NewBlobStoreMonitor(address string) *Monitor {
	return NewMonitor("blobstore", NewTCPChecker(address), DefaultConfig())
}

// NewLeaseMonitor builds a TCP reachability check against a RaftLease
// peer address. BlobLease has no separate backend to probe — callers
// configured with it should skip registering this monitor entirely.
func NewLeaseMonitor(peerAddress string) *Monitor {
	return NewMonitor("lease", NewTCPChecker(peerAddress), DefaultConfig())
}

// NewShimAgentMonitor builds an HTTP check, every 10s, against a cluster
// agent's health endpoint, independent of clustermanager's own heartbeat
// bookkeeping. No shim backend in this module constructs one.
func NewShimAgentMonitor(healthURL string) *Monitor {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Second
	return NewMonitor("shim", NewHTTPChecker(healthURL), cfg)
}
