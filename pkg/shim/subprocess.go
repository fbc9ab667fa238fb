package shim

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cuemby/mpr/pkg/types"
)

// Subprocess dispatches by os/exec-ing the mpr binary's remote-entry
// subcommand and waiting synchronously for it to exit. A failure to start
// or any non-zero exit is returned as DispatchFailed carrying stderr. A
// zero exit that wrote no result surfaces as RemoteCrashed only when the
// Runner re-probes the blob store afterwards.
type Subprocess struct {
	BinaryPath string // defaults to "mpr" on PATH if empty
}

func (s *Subprocess) Name() string { return "subprocess" }

func (s *Subprocess) Dispatch(ctx context.Context, memoURI types.MemoURI, writerID string) (PFuture, error) {
	bin := s.BinaryPath
	if bin == "" {
		bin = "mpr"
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, bin, "remote-entry", string(memoURI), writerID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &types.DispatchFailed{
			MemoURI: memoURI,
			Reason:  fmt.Sprintf("remote-entry exited: %s", stderr.String()),
			Err:     err,
		}
	}

	metadata := types.ResultMetadata{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Duration:   time.Since(started),
		ExitStatus: "ok",
	}
	return Resolved(metadata, nil), nil
}
