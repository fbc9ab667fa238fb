// Package config loads mpr's runtime configuration from environment
// variables, layered over struct-tag defaults, with a thin CLI override
// layer living in cmd/mpr.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
)

// Config holds every tunable the spec's external-interface table names.
type Config struct {
	BlobRoot    string `env:"MPR_BLOB_ROOT" envDefault:"file:///var/lib/mpr/blobs" default:"file:///var/lib/mpr/blobs"`
	PipelineID  string `env:"MPR_PIPELINE_ID"`
	RunnerPrefix string `env:"MPR_RUNNER_PREFIX" envDefault:"mops2-mpf" default:"mops2-mpf"`

	ControlCacheTTLSeconds int `env:"MPR_CONTROL_CACHE_TTL_SECONDS" default:"5"`
	LeaseTTLSeconds        int `env:"MPR_LEASE_TTL_SECONDS" default:"60"`
	LeaseHeartbeatSeconds  int `env:"MPR_LEASE_HEARTBEAT_SECONDS" default:"15"`
	MaintainLocks          bool `env:"MPR_MAINTAIN_LOCKS" default:"true"`

	DeferredWorkMax   int  `env:"MPR_DEFERRED_WORK_MAX" default:"16"`
	RequireAllResults bool `env:"MPR_REQUIRE_ALL_RESULTS" default:"false"`

	SummaryDir         string `env:"MPR_SUMMARY_DIR" default:"./mpr-summaries"`
	SummarySlackWebhook string `env:"MPR_SUMMARY_SLACK_WEBHOOK"`

	LogLevel  string `env:"MPR_LOG_LEVEL" default:"info"`
	LogFormat string `env:"MPR_LOG_FORMAT" default:"json"`

	ShimBackend string `env:"MPR_SHIM_BACKEND" default:"inprocess"` // inprocess|subprocess|containerd|cluster

	ClusterManagerAddr   string `env:"MPR_CLUSTER_MANAGER_ADDR"`
	ClusterManagerListen string `env:"MPR_CLUSTER_MANAGER_LISTEN" default:":7700"`
	ClusterJoinToken     string `env:"MPR_CLUSTER_JOIN_TOKEN"`
	ClusterCertDir       string `env:"MPR_CLUSTER_CERT_DIR"`
	ClusterAgentID       string `env:"MPR_CLUSTER_AGENT_ID"`

	MetricsAddr string `env:"MPR_METRICS_ADDR" default:":9090"`
}

// Load reads configuration from environment variables, filling in
// struct-tag defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}
