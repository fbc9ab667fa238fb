package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/mpr/pkg/blobstore"
	"github.com/cuemby/mpr/pkg/config"
	"github.com/cuemby/mpr/pkg/deferredwork"
	"github.com/cuemby/mpr/pkg/events"
	"github.com/cuemby/mpr/pkg/lease"
	"github.com/cuemby/mpr/pkg/remoteentry"
	"github.com/cuemby/mpr/pkg/runner"
	"github.com/cuemby/mpr/pkg/shim"
	"github.com/cuemby/mpr/pkg/summary"
	"github.com/cuemby/mpr/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Warm or verify a declarative list of registered calls",
	Long: `run loads a pipeline file naming registered functions and
arguments, and submits each through the Runner, so a redeploy or crash
recovery can re-establish every call's cached result without an
application driving them one by one.

Arguments in the pipeline file must be scalars (string, int, float,
bool) — run gob-encodes each directly and cannot express the full
range of types an arbitrary registered function might accept. Calls
needing richer argument types should be submitted from application code
via pkg/runner.Submit instead.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "pipeline YAML file to apply (required)")
	runCmd.Flags().Int("parallelism", 4, "max concurrent calls in flight")
	runCmd.Flags().Duration("batch-delay", 0, "delay between batches")
	_ = runCmd.MarkFlagRequired("file")
}

// pipelineFile is the YAML shape `mpr run -f` expects.
type pipelineFile struct {
	Calls []pipelineCall `yaml:"calls"`
}

type pipelineCall struct {
	Name       string        `yaml:"name"`
	FuncID     string        `yaml:"func_id"`
	PipelineID string        `yaml:"pipeline_id"`
	Args       []interface{} `yaml:"args,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	parallelism, _ := cmd.Flags().GetInt("parallelism")
	delay, _ := cmd.Flags().GetDuration("batch-delay")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading pipeline file: %w", err)
	}
	var pf pipelineFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parsing pipeline file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := blobstore.Open(cfg.BlobRoot)
	if err != nil {
		return fmt.Errorf("opening blob store at %q: %w", cfg.BlobRoot, err)
	}

	l := lease.NewBlobLease(store, lease.DefaultConfirmDelay)
	leaseTTL := time.Duration(cfg.LeaseTTLSeconds) * time.Second

	deferred := deferredwork.NewPool(cfg.DeferredWorkMax)
	ctx := context.Background()
	deferred.Start(ctx)
	defer deferred.Stop()

	sh := shim.NewInProcess(store, func(ctx context.Context, store blobstore.Store, memoURI types.MemoURI, writerID string) (types.ResultMetadata, error) {
		return remoteentry.Execute(ctx, store, memoURI, writerID, remoteentry.Config{Lease: l, LeaseTTL: leaseTTL, Deferred: deferred})
	})

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	if cfg.SummaryDir != "" {
		sum, err := summary.New(summary.Config{Dir: cfg.SummaryDir, SlackWebhook: cfg.SummarySlackWebhook}, broker)
		if err != nil {
			return fmt.Errorf("opening summary logger: %w", err)
		}
		sum.Start()
		defer sum.Close()
	}

	r := runner.New(store, l, sh, deferred, broker, runner.Config{
		RunnerPrefix:      cfg.RunnerPrefix,
		LeaseTTL:          leaseTTL,
		MaintainLocks:     cfg.MaintainLocks,
		RequireAllResults: cfg.RequireAllResults,
		WaitBudget:        30 * time.Second,
	})
	defer r.Close()

	entries := make([]runner.RewarmEntry, len(pf.Calls))
	for i, call := range pf.Calls {
		encodedArgs := make([][]byte, len(call.Args))
		for j, arg := range call.Args {
			encoded, err := r.EncodeArgument(fmt.Sprintf("calls[%d].args[%d]", i, j), arg)
			if err != nil {
				return fmt.Errorf("encoding %s arg %d: %w", call.Name, j, err)
			}
			encodedArgs[j] = encoded
		}
		entries[i] = runner.RewarmEntry{
			Name: call.Name,
			CallInput: runner.CallInput{
				FuncID:      call.FuncID,
				PipelineID:  call.PipelineID,
				EncodedArgs: encodedArgs,
			},
		}
	}

	results := r.Rewarm(ctx, entries, runner.RewarmConfig{Parallelism: parallelism, Delay: delay})

	failed := 0
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
			failed++
		}
		fmt.Printf("%-24s %s\n", res.Name, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d calls failed", failed, len(results))
	}
	return nil
}
