package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const (
	// dockerCallTimeout bounds kill and remove calls made after the caller's
	// context may already be gone.
	dockerCallTimeout = 5 * time.Second
	jobLabel          = "codejudge.job"
)

// containerAPI is the part of the Docker API one run needs.
type containerAPI interface {
	Create(ctx context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error)
	Attach(ctx context.Context, id string) (types.HijackedResponse, error)
	Start(ctx context.Context, id string) error
	Wait(ctx context.Context, id string) (<-chan container.WaitResponse, <-chan error)
	Kill(ctx context.Context, id, signal string) error
	Remove(ctx context.Context, id string) error
	Close() error
}

type sdkClient struct {
	cli *client.Client
}

func (s sdkClient) Create(ctx context.Context, cfg *container.Config, host *container.HostConfig, name string) (string, error) {
	resp, err := s.cli.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		return "", err
	}
	for _, warning := range resp.Warnings {
		logger.Warn(ctx, "docker create warning", zap.String("container", name), zap.String("warning", warning))
	}
	return resp.ID, nil
}

func (s sdkClient) Attach(ctx context.Context, id string) (types.HijackedResponse, error) {
	return s.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
}

func (s sdkClient) Start(ctx context.Context, id string) error {
	return s.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (s sdkClient) Wait(ctx context.Context, id string) (<-chan container.WaitResponse, <-chan error) {
	return s.cli.ContainerWait(ctx, id, container.WaitConditionNextExit)
}

func (s sdkClient) Kill(ctx context.Context, id, signal string) error {
	return s.cli.ContainerKill(ctx, id, signal)
}

func (s sdkClient) Remove(ctx context.Context, id string) error {
	return s.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

func (s sdkClient) Close() error {
	return s.cli.Close()
}

// DockerEngine runs each invocation as a throwaway container through the
// Docker Engine API.
type DockerEngine struct {
	cfg Config
	api containerAPI
}

// NewDockerEngine connects to the daemon named by cfg.Host or the DOCKER_*
// environment.
func NewDockerEngine(cfg Config) (*DockerEngine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxStartError, "init docker client failed: %v", err)
	}
	return newDockerEngine(cfg, sdkClient{cli: cli}), nil
}

func newDockerEngine(cfg Config, api containerAPI) *DockerEngine {
	return &DockerEngine{cfg: cfg.withDefaults(), api: api}
}

// Close releases the daemon connection.
func (e *DockerEngine) Close() error {
	return e.api.Close()
}

// Run creates the container, feeds stdin, and waits for exit or the watchdog.
// The container is force-removed on every path once it exists.
func (e *DockerEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}
	limits := e.cfg.Limits.Merge(runSpec.Limits)
	cfg, host := e.containerConfig(runSpec, limits)
	name := e.containerName(runSpec.JobID)

	logger.Debug(ctx, "starting sandbox",
		zap.String("container", name),
		zap.String("image", runSpec.Image),
		zap.Strings("cmd", runSpec.Cmd),
		zap.Int64("wall_time_ms", limits.WallTimeMs),
	)

	id, err := e.api.Create(ctx, cfg, host, name)
	if err != nil {
		return result.RunResult{}, startError(ctx, err, "create container "+name)
	}
	defer e.remove(ctx, id)

	return e.supervise(ctx, id, runSpec.Stdin, limits)
}

// ContainerConfig returns the create request for runSpec.
func (e *DockerEngine) ContainerConfig(runSpec spec.RunSpec) (*container.Config, *container.HostConfig) {
	return e.containerConfig(runSpec, e.cfg.Limits.Merge(runSpec.Limits))
}

func (e *DockerEngine) containerConfig(runSpec spec.RunSpec, limits spec.ResourceLimit) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:           runSpec.Image,
		Cmd:             runSpec.Cmd,
		WorkingDir:      e.cfg.MountTarget,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		StdinOnce:       true,
		NetworkDisabled: e.cfg.Network == defaultNetwork,
		Labels:          map[string]string{jobLabel: runSpec.JobID},
	}
	host := &container.HostConfig{
		NetworkMode: container.NetworkMode(e.cfg.Network),
		Binds:       []string{runSpec.HostDir + ":" + e.cfg.MountTarget},
		CapDrop:     e.cfg.CapDrop,
		SecurityOpt: e.cfg.SecurityOpt,
	}
	if limits.MemoryMB > 0 {
		host.Resources.Memory = limits.MemoryMB << 20
	}
	if limits.CPUs > 0 {
		host.Resources.NanoCPUs = int64(limits.CPUs * 1e9)
	}
	if limits.PIDs > 0 {
		pids := limits.PIDs
		host.Resources.PidsLimit = &pids
	}
	return cfg, host
}

func (e *DockerEngine) containerName(jobID string) string {
	return e.cfg.ContainerPrefix + jobID
}

// supervise runs a created container to completion or forced termination.
func (e *DockerEngine) supervise(ctx context.Context, id, stdin string, limits spec.ResourceLimit) (result.RunResult, error) {
	stdout := NewBoundedBuffer(e.cfg.OutputLimitBytes)
	stderr := NewBoundedBuffer(e.cfg.OutputLimitBytes)
	grace := time.Duration(e.cfg.KillGraceMs) * time.Millisecond
	detached := context.WithoutCancel(ctx)

	stream, err := e.api.Attach(ctx, id)
	if err != nil {
		return result.RunResult{}, startError(ctx, err, "attach container")
	}
	defer stream.Close()

	// The wait outlives ctx so a cancelled run still observes the kill.
	waitCtx, cancelWait := context.WithCancel(detached)
	defer cancelWait()
	waitCh, waitErrCh := e.api.Wait(waitCtx, id)

	start := time.Now()
	if err := e.api.Start(ctx, id); err != nil {
		return result.RunResult{}, startError(ctx, err, "start container")
	}

	wd := startWatchdog(ctx, containerSignaler{api: e.api, id: id, ctx: detached},
		time.Duration(limits.WallTimeMs)*time.Millisecond, grace)

	go func() {
		// The write fails when the program exits without reading its input.
		_, _ = io.WriteString(stream.Conn, stdin)
		_ = stream.CloseWrite()
	}()
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, stream.Reader)
		copied <- err
	}()

	exitCode, waitErr := awaitExit(waitCh, waitErrCh, wd.signalled(), grace+dockerCallTimeout)
	wd.Stop()
	elapsed := time.Since(start)

	drain := time.NewTimer(grace)
	select {
	case err := <-copied:
		if err != nil {
			logger.Debug(ctx, "sandbox output stream ended with error", zap.String("container", id), zap.Error(err))
		}
	case <-drain.C:
		logger.Warn(ctx, "sandbox output stream outlived the container", zap.String("container", id))
	}
	drain.Stop()

	runResult := result.RunResult{
		ExitCode:        exitCode,
		Killed:          wd.Killed(),
		WallTimeMs:      elapsed.Milliseconds(),
		Stdout:          strings.TrimSpace(stdout.String()),
		Stderr:          strings.TrimSpace(stderr.String()),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
	}
	if wd.Canceled() && !runResult.Killed {
		return runResult, fmt.Errorf("sandbox interrupted: %w", ctx.Err())
	}
	if waitErr != nil {
		if runResult.Killed {
			logger.Warn(ctx, "wait for killed sandbox failed", zap.String("container", id), zap.Error(waitErr))
			return runResult, nil
		}
		return runResult, appErr.Wrapf(waitErr, appErr.SandboxRuntimeError, "wait container failed: %v", waitErr)
	}
	return runResult, nil
}

// awaitExit waits for the container to stop. Once the watchdog has sent its
// final signal the wait is bounded by limit.
func awaitExit(waitCh <-chan container.WaitResponse, errCh <-chan error, signalled <-chan struct{}, limit time.Duration) (int, error) {
	select {
	case resp := <-waitCh:
		return exitStatus(resp)
	case err := <-errCh:
		return -1, err
	case <-signalled:
	}

	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case resp := <-waitCh:
		return exitStatus(resp)
	case err := <-errCh:
		return -1, err
	case <-timer.C:
		return -1, errors.New("container did not stop after kill")
	}
}

func exitStatus(resp container.WaitResponse) (int, error) {
	if resp.Error != nil && resp.Error.Message != "" {
		return -1, errors.New(resp.Error.Message)
	}
	return int(resp.StatusCode), nil
}

func (e *DockerEngine) remove(ctx context.Context, id string) {
	removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dockerCallTimeout)
	defer cancel()
	if err := e.api.Remove(removeCtx, id); err != nil {
		logger.Warn(ctx, "remove sandbox container failed", zap.String("container", id), zap.Error(err))
	}
}

// startError keeps cancellation distinguishable from daemon failures.
func startError(ctx context.Context, err error, action string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("sandbox interrupted: %w", ctxErr)
	}
	return appErr.Wrapf(err, appErr.SandboxStartError, "%s failed: %v", action, err)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.JobID == "" {
		return appErr.ValidationError("job_id", "required")
	}
	if runSpec.HostDir == "" {
		return appErr.ValidationError("host_dir", "required")
	}
	if runSpec.Image == "" {
		return appErr.ValidationError("image", "required")
	}
	if len(runSpec.Cmd) == 0 {
		return appErr.ValidationError("cmd", "required")
	}
	return nil
}

// containerSignaler delivers watchdog signals to the container's init process.
type containerSignaler struct {
	api containerAPI
	id  string
	ctx context.Context
}

func (s containerSignaler) Terminate() error {
	return s.signal("SIGTERM")
}

func (s containerSignaler) Kill() error {
	return s.signal("SIGKILL")
}

func (s containerSignaler) signal(sig string) error {
	ctx, cancel := context.WithTimeout(s.ctx, dockerCallTimeout)
	defer cancel()
	return s.api.Kill(ctx, s.id, sig)
}
