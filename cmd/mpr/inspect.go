package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/config"
	"github.com/cuemby/mpr/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <memo_uri>",
	Short: "Dump raw control-file presence for a memo URI",
	Long: `inspect is a minimal smoke-check, not a diagnostic TUI: it lists
which of invocation, lock, result, exception, and result-metadata exist
under memo_uri and prints their URIs. No summarization beyond that.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	memoURI := types.MemoURI(args[0])

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := blobstore.Open(cfg.BlobRoot)
	if err != nil {
		return fmt.Errorf("opening blob store at %q: %w", cfg.BlobRoot, err)
	}

	ctx := context.Background()
	kinds := []types.ControlKind{
		types.ControlKindInvocation,
		types.ControlKindLock,
		types.ControlKindResult,
		types.ControlKindException,
		types.ControlKindMetadata,
	}
	for _, kind := range kinds {
		prefix := string(memoURI) + "/" + string(kind)
		if kind == types.ControlKindInvocation || kind == types.ControlKindLock {
			if ref, err := store.Head(ctx, prefix); err == nil {
				fmt.Printf("%-16s present  %s (%d bytes)\n", kind, ref.URI, ref.Size)
			} else {
				fmt.Printf("%-16s absent\n", kind)
			}
			continue
		}

		refs, err := store.List(ctx, prefix+"/")
		if err != nil {
			return fmt.Errorf("listing %s: %w", prefix, err)
		}
		if len(refs) == 0 {
			fmt.Printf("%-16s absent\n", kind)
			continue
		}
		for _, ref := range refs {
			fmt.Printf("%-16s present  %s (%d bytes)\n", kind, ref.URI, ref.Size)
		}
	}
	return nil
}
