package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Call outcome metrics.
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpr_calls_total",
			Help: "Total number of Submit calls by outcome (hit, dispatched, exception, crashed)",
		},
		[]string{"outcome"},
	)

	CallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpr_call_latency_seconds",
			Help:    "End-to-end Submit latency in seconds, by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Dispatch metrics.
	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpr_dispatches_total",
			Help: "Total number of shim dispatches by backend and result",
		},
		[]string{"backend", "result"},
	)

	DispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpr_dispatch_latency_seconds",
			Help:    "Time from dispatch to a resolved PFuture, by backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// Lease metrics.
	LeaseAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpr_lease_acquisitions_total",
			Help: "Total number of TryAcquire calls by result (granted, refused)",
		},
		[]string{"result"},
	)

	LeaseStolenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mpr_lease_stolen_total",
			Help: "Total number of times a held lease was detected stolen during maintenance",
		},
	)

	LeaseHeartbeatFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mpr_lease_heartbeat_failures_total",
			Help: "Total number of lease heartbeat renewals that failed",
		},
	)

	// Deferred work metrics.
	DeferredWorkQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mpr_deferred_work_queue_depth",
			Help: "Current number of queued-but-not-started deferred work jobs",
		},
		[]string{"queue"},
	)

	DeferredWorkJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpr_deferred_work_jobs_total",
			Help: "Total number of deferred work jobs processed by queue and result",
		},
		[]string{"queue", "result"},
	)

	// BlobStore metrics.
	BlobStoreOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpr_blobstore_op_latency_seconds",
			Help:    "BlobStore operation latency in seconds, by scheme and op",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scheme", "op"},
	)

	BlobStoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpr_blobstore_retries_total",
			Help: "Total number of BlobStore operation retries by scheme",
		},
		[]string{"scheme"},
	)
)

func init() {
	prometheus.MustRegister(
		CallsTotal,
		CallLatency,
		DispatchesTotal,
		DispatchLatency,
		LeaseAcquisitionsTotal,
		LeaseStolenTotal,
		LeaseHeartbeatFailuresTotal,
		DeferredWorkQueueDepth,
		DeferredWorkJobsTotal,
		BlobStoreOpLatency,
		BlobStoreRetriesTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
