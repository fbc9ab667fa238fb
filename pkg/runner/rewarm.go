package runner

import (
	"context"
	"time"

	"github.com/cuemby/mpr/pkg/log"
)

// RewarmEntry names one call a pipeline file wants re-verified or
// computed ahead of time — `mpr run -f pipeline.yaml` loads a list of
// these and hands them to Rewarm.
type RewarmEntry struct {
	CallInput
	Name string // human label for logging only
}

// RewarmConfig bounds how aggressively Rewarm drives its batches,
// mirroring a rolling update's parallelism/delay knobs so a large
// pipeline file doesn't thunder against the blob store and lease backend
// all at once.
type RewarmConfig struct {
	Parallelism int
	Delay       time.Duration
}

// RewarmResult captures one entry's outcome.
type RewarmResult struct {
	Name  string
	Value []byte
	Err   error
}

// Rewarm submits every entry in batches of cfg.Parallelism, waiting
// cfg.Delay between batches, and returns each entry's outcome in input
// order. It's the batch counterpart to Submit: where Submit is for a
// single call awaited by application code, Rewarm is for "make sure
// this whole pipeline's results exist" runs driven by the CLI.
func (r *Runner) Rewarm(ctx context.Context, entries []RewarmEntry, cfg RewarmConfig) []RewarmResult {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	results := make([]RewarmResult, len(entries))

	log.Logger.Info().
		Int("entries", len(entries)).
		Int("parallelism", cfg.Parallelism).
		Dur("delay", cfg.Delay).
		Msg("rewarm starting")

	for i := 0; i < len(entries); i += cfg.Parallelism {
		end := i + cfg.Parallelism
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[i:end]

		futures := make([]*Future, len(batch))
		for j, entry := range batch {
			futures[j] = r.Submit(ctx, entry.CallInput)
		}
		for j, future := range futures {
			value, _, err := future.Wait(ctx)
			results[i+j] = RewarmResult{
				Name:  batch[j].Name,
				Value: value,
				Err:   err,
			}
			if err != nil {
				log.Logger.Warn().Str("entry", batch[j].Name).Err(err).Msg("rewarm entry failed")
			}
		}

		if end < len(entries) && cfg.Delay > 0 {
			select {
			case <-time.After(cfg.Delay):
			case <-ctx.Done():
				return results
			}
		}
	}

	log.Logger.Info().Int("entries", len(entries)).Msg("rewarm complete")
	return results
}
