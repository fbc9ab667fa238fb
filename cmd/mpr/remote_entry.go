package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/config"
	"github.com/cuemby/mpr/pkg/deferredwork"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/remoteentry"
	"github.com/cuemby/mpr/pkg/types"
)

var remoteEntryCmd = &cobra.Command{
	Use:   "remote-entry <memo_uri> <writer_id>",
	Short: "Run the remote-entry protocol for an already-dispatched invocation",
	Long: `remote-entry is the subprocess and containerd shim backends' target:
it fetches the Thunk written at memo_uri, invokes the registered function,
and writes the resulting result or exception control file. It expects
writer_id to already hold memo_uri's lease.`,
	Args: cobra.ExactArgs(2),
	RunE: runRemoteEntry,
}

func runRemoteEntry(cmd *cobra.Command, args []string) error {
	memoURI, writerID := types.MemoURI(args[0]), args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := blobstore.Open(cfg.BlobRoot)
	if err != nil {
		return fmt.Errorf("opening blob store at %q: %w", cfg.BlobRoot, err)
	}

	l := lease.NewBlobLease(store, lease.DefaultConfirmDelay)
	ttl := time.Duration(cfg.LeaseTTLSeconds) * time.Second

	deferred := deferredwork.NewPool(cfg.DeferredWorkMax)
	ctx := context.Background()
	deferred.Start(ctx)
	defer deferred.Stop()

	metadata, err := remoteentry.Execute(ctx, store, memoURI, writerID, remoteentry.Config{
		Lease:    l,
		LeaseTTL: ttl,
		Deferred: deferred,
	})
	if err != nil {
		return fmt.Errorf("remote entry failed: %w", err)
	}

	fmt.Printf("run_id=%s exit_status=%s duration=%s\n", metadata.RunID, metadata.ExitStatus, metadata.Duration)
	return nil
}
