package shim

import (
	"context"
	"fmt"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"

	"github.com/cuemby/mpr/pkg/log"
	"github.com/cuemby/mpr/pkg/types"
)

// DefaultNamespace is the containerd namespace mpr sandboxes remote-entry
// invocations under.
const DefaultNamespace = "mpr"

// Containerd runs the mpr remote-entry binary inside a containerd
// sandbox, adapted from the teacher's ContainerdRuntime: one short-lived
// task per dispatched call instead of a long-running service container.
// An async PFuture waits on the task's exit-status channel rather than blocking
// Dispatch, since a remote call may run far longer than a typical
// container health probe.
type Containerd struct {
	client      *containerd.Client
	namespace   string
	image       string
	entryBinary string
	pollEvery   time.Duration
}

// NewContainerd connects to the containerd socket at socketPath and
// configures the sandbox image every dispatched call runs inside.
func NewContainerd(socketPath, image, entryBinary string) (*Containerd, error) {
	if socketPath == "" {
		socketPath = "/run/containerd/containerd.sock"
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("shim: connecting to containerd: %w", err)
	}
	return &Containerd{
		client:      client,
		namespace:   DefaultNamespace,
		image:       image,
		entryBinary: entryBinary,
		pollEvery:   2 * time.Second,
	}, nil
}

func (s *Containerd) Name() string { return "containerd" }

func (s *Containerd) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Containerd) Dispatch(ctx context.Context, memoURI types.MemoURI, writerID string) (PFuture, error) {
	nsCtx := namespaces.WithNamespace(context.Background(), s.namespace)

	image, err := s.client.GetImage(nsCtx, s.image)
	if err != nil {
		return nil, &types.DispatchFailed{MemoURI: memoURI, Reason: "image unavailable", Err: err}
	}

	containerID := sandboxContainerID(memoURI, writerID)
	args := []string{s.entryBinary, "remote-entry", string(memoURI), writerID}

	ctrdContainer, err := s.client.NewContainer(
		nsCtx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(oci.WithImageConfig(image), oci.WithProcessArgs(args...)),
	)
	if err != nil {
		return nil, &types.DispatchFailed{MemoURI: memoURI, Reason: "creating sandbox container", Err: err}
	}

	task, err := ctrdContainer.NewTask(nsCtx, cio.NullIO)
	if err != nil {
		return nil, &types.DispatchFailed{MemoURI: memoURI, Reason: "creating sandbox task", Err: err}
	}

	statusC, err := task.Wait(nsCtx)
	if err != nil {
		return nil, &types.DispatchFailed{MemoURI: memoURI, Reason: "waiting on sandbox task", Err: err}
	}

	started := time.Now()
	if err := task.Start(nsCtx); err != nil {
		return nil, &types.DispatchFailed{MemoURI: memoURI, Reason: "starting sandbox task", Err: err}
	}

	future, resolve := NewChannelFuture()
	go func() {
		defer task.Delete(nsCtx)
		defer ctrdContainer.Delete(nsCtx, containerd.WithSnapshotCleanup)

		select {
		case status := <-statusC:
			code, _, _ := status.Result()
			metadata := types.ResultMetadata{StartedAt: started, FinishedAt: time.Now(), Duration: time.Since(started)}
			if code == 0 {
				metadata.ExitStatus = "ok"
				resolve(metadata, nil)
			} else {
				metadata.ExitStatus = "crashed"
				resolve(metadata, &types.RemoteCrashed{MemoURI: memoURI})
			}
		case <-ctx.Done():
			log.Logger.Warn().Str("memo_uri", string(memoURI)).Msg("containerd dispatch canceled before sandbox exit")
			resolve(types.ResultMetadata{}, ctx.Err())
		}
	}()

	return future, nil
}

func sandboxContainerID(memoURI types.MemoURI, writerID string) string {
	return "mpr-" + writerID + "-" + hashSuffix(string(memoURI))
}

func hashSuffix(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[len(s)-12:]
}
