// Package container runs pipeline commands inside a long-lived Docker
// container instead of on the host.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/logging"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

// Exit statuses the shell uses for "found but not executable" and
// "not found". Inside a container these are the only signal that a
// program could not be launched.
const (
	exitCannotExecute = 126
	exitNotFound      = 127
)

// execAPI is the part of the Docker client the executor needs once the
// container is running.
type execAPI interface {
	ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
}

// Options configure the container started by Start.
type Options struct {
	Image string
	// Mounts are host directories bind-mounted at the same path.
	Mounts []string
	Name   string
	// Env is set for every exec, before the command's own overlay.
	Env     []string
	Timeout time.Duration
}

// Executor implements execute.Executor on top of docker exec.
type Executor struct {
	api         execAPI
	containerID string
	env         []string
	timeout     time.Duration
	logger      *logrus.Logger
}

var _ execute.Executor = (*Executor)(nil)

// Start creates and starts a container that sleeps until Close is called.
func Start(ctx context.Context, opts Options) (*Executor, error) {
	logger := logging.GetLogger()
	if opts.Image == "" {
		return nil, fmt.Errorf("docker image is required")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	binds := make([]string, 0, len(opts.Mounts))
	for _, dir := range opts.Mounts {
		binds = append(binds, dir+":"+dir)
	}

	config := &container.Config{
		Image: opts.Image,
		Cmd:   []string{"sleep", "infinity"},
	}
	hostConfig := &container.HostConfig{
		Binds:      binds,
		AutoRemove: false,
	}

	logger.WithFields(logrus.Fields{
		"image":  opts.Image,
		"mounts": opts.Mounts,
	}).Debug("Creating benchmark container")

	resp, err := cli.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container from %s: %w", opts.Image, err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"container_id": shortID(resp.ID),
		"image":        opts.Image,
	}).Info("Benchmark container started")

	return newExecutor(cli, resp.ID, opts.Env, opts.Timeout), nil
}

func newExecutor(api execAPI, containerID string, env []string, timeout time.Duration) *Executor {
	return &Executor{
		api:         api,
		containerID: containerID,
		env:         env,
		timeout:     timeout,
		logger:      logging.GetLogger(),
	}
}

func (e *Executor) ContainerID() string {
	return e.containerID
}

func (e *Executor) Execute(ctx context.Context, cmd execute.Command) (*execute.Result, error) {
	args := cmd.Args()
	if len(args) == 0 {
		return nil, &execute.ExecutionError{Args: args, Err: errors.New("empty command")}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	execConfig := types.ExecConfig{
		Cmd:          args,
		Env:          execute.MergeEnv(e.env, cmd.Env()),
		WorkingDir:   cmd.Dir(),
		AttachStdout: true,
		AttachStderr: true,
	}

	e.logger.WithFields(logrus.Fields{
		"container_id": shortID(e.containerID),
		"command":      cmd.String(),
		"dir":          cmd.Dir(),
	}).Debug("Running command in container")

	start := time.Now()
	execResp, err := e.api.ContainerExecCreate(ctx, e.containerID, execConfig)
	if err != nil {
		return nil, &execute.ExecutionError{Args: args, Err: fmt.Errorf("exec create: %w", err)}
	}

	attach, err := e.api.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, &execute.ExecutionError{Args: args, Err: fmt.Errorf("exec attach: %w", err)}
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copied <- err
	}()

	select {
	case err := <-copied:
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &execute.ExecutionError{Args: args, Err: fmt.Errorf("read exec output: %w", err)}
		}
	case <-ctx.Done():
		// Closing the hijacked connection unblocks the copier; the process in
		// the container is left to the container's lifetime.
		attach.Close()
		<-copied
		return &execute.Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, &execute.ExecutionError{Args: args, Err: ctx.Err()}
	}

	inspect, err := e.api.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, &execute.ExecutionError{Args: args, Err: fmt.Errorf("exec inspect: %w", err)}
	}

	result := &execute.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
		Duration: time.Since(start),
	}

	if inspect.ExitCode == exitCannotExecute || inspect.ExitCode == exitNotFound {
		return nil, &execute.ExecutionError{
			Args: args,
			Err:  fmt.Errorf("exit status %d in container %s: %s", inspect.ExitCode, shortID(e.containerID), bytes.TrimSpace(stderr.Bytes())),
		}
	}

	e.logger.WithFields(logrus.Fields{
		"command":   args[0],
		"exit_code": result.ExitCode,
		"duration":  result.Duration,
	}).Debug("Command finished")

	return result, nil
}

// Close force-removes the container.
func (e *Executor) Close(ctx context.Context) error {
	e.logger.WithField("container_id", shortID(e.containerID)).Debug("Removing benchmark container")

	removeOpts := types.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}
	if err := e.api.ContainerRemove(ctx, e.containerID, removeOpts); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", shortID(e.containerID), err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
