package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/clusteragent"
	"github.com/cuemby/mpr/pkg/clusterrpc"
	"github.com/cuemby/mpr/pkg/config"
	"github.com/cuemby/mpr/pkg/deferredwork"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/remoteentry"
)

var workerAgentCmd = &cobra.Command{
	Use:   "worker-agent",
	Short: "Start a cluster worker agent (cluster shim backend)",
	Long: `worker-agent registers with a cluster-manager, polls it for
assignments, and executes each one with pkg/remoteentry directly against
the shared blob store. Only control information (memo uri, writer id)
crosses the clusterrpc wire to the manager.`,
	RunE: runWorkerAgent,
}

func runWorkerAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.ClusterManagerAddr == "" {
		return fmt.Errorf("worker-agent: MPR_CLUSTER_MANAGER_ADDR is required")
	}

	store, err := blobstore.Open(cfg.BlobRoot)
	if err != nil {
		return fmt.Errorf("opening blob store at %q: %w", cfg.BlobRoot, err)
	}

	client, err := clusterrpc.Dial(cfg.ClusterManagerAddr, cfg.ClusterCertDir)
	if err != nil {
		return fmt.Errorf("dialing cluster manager at %s: %w", cfg.ClusterManagerAddr, err)
	}
	defer client.Close()

	agentID := cfg.ClusterAgentID
	if agentID == "" {
		agentID = "agent-" + uuid.NewString()
	}

	l := lease.NewBlobLease(store, lease.DefaultConfirmDelay)
	ttl := time.Duration(cfg.LeaseTTLSeconds) * time.Second

	ctx := context.Background()
	deferred := deferredwork.NewPool(cfg.DeferredWorkMax)
	deferred.Start(ctx)
	defer deferred.Stop()

	agent := clusteragent.New(client, store, clusteragent.Config{
		AgentID:     agentID,
		RemoteEntry: remoteentry.Config{Lease: l, LeaseTTL: ttl, Deferred: deferred},
	})

	return agent.Run(ctx)
}
