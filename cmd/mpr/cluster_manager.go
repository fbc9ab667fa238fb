package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/cuemby/mpr/pkg/clustermanager"
	"github.com/cuemby/mpr/pkg/clusterrpc"
	"github.com/cuemby/mpr/pkg/config"
	"github.com/cuemby/mpr/pkg/log"
)

var clusterManagerCmd = &cobra.Command{
	Use:   "cluster-manager",
	Short: "Start a cluster manager (agent membership and placement)",
	Long: `cluster-manager tracks registered worker agents over clusterrpc and
hands out placement decisions to whichever agent pkg/shim.SelectAgent
judges least loaded. It holds no invocation or result bytes itself —
agents read and write those directly against the shared blob store.`,
	RunE: runClusterManager,
}

func runClusterManager(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.ClusterManagerListen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ClusterManagerListen, err)
	}

	srv, err := clusterrpc.NewServer(cfg.ClusterCertDir)
	if err != nil {
		return fmt.Errorf("building cluster rpc server: %w", err)
	}
	clusterrpc.RegisterClusterServer(srv, clustermanager.New())

	log.Logger.Info().Str("listen", cfg.ClusterManagerListen).Msg("cluster manager listening")
	return srv.Serve(lis)
}
