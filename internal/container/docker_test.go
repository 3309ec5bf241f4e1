package container

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"toolchain-bench/internal/execute"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	stdout, stderr string
	exitCode       int
	block          bool

	lastConfig types.ExecConfig
	removed    string
}

func (f *fakeDocker) ContainerExecCreate(_ context.Context, _ string, config types.ExecConfig) (types.IDResponse, error) {
	f.lastConfig = config
	return types.IDResponse{ID: "exec-1"}, nil
}

func (f *fakeDocker) ContainerExecAttach(_ context.Context, _ string, _ types.ExecStartCheck) (types.HijackedResponse, error) {
	client, server := net.Pipe()
	if f.block {
		// Nothing is ever written; reads block until the conn is closed.
		return types.HijackedResponse{Conn: client, Reader: bufio.NewReader(client)}, nil
	}
	server.Close()

	var buf bytes.Buffer
	stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	return types.HijackedResponse{Conn: client, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDocker) ContainerExecInspect(_ context.Context, _ string) (types.ContainerExecInspect, error) {
	return types.ContainerExecInspect{ExitCode: f.exitCode}, nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ types.ContainerRemoveOptions) error {
	f.removed = id
	return nil
}

func TestExecute_DemultiplexesStreams(t *testing.T) {
	fake := &fakeDocker{stdout: "score: 1.5\n", stderr: "warn\n", exitCode: 3}
	ex := newExecutor(fake, "abcdef0123456789", []string{"A=1"}, 0)

	cmd := execute.NewCommand("./bench", "1").WithEnv("B", "2").WithDir("/runs/x")
	res, err := ex.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, "score: 1.5\n", res.Stdout)
	assert.Equal(t, "warn\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)

	assert.Equal(t, []string{"./bench", "1"}, fake.lastConfig.Cmd)
	assert.Equal(t, []string{"A=1", "B=2"}, fake.lastConfig.Env)
	assert.Equal(t, "/runs/x", fake.lastConfig.WorkingDir)
	assert.True(t, fake.lastConfig.AttachStdout)
}

func TestExecute_NotFoundIsExecutionError(t *testing.T) {
	for _, code := range []int{exitCannotExecute, exitNotFound} {
		fake := &fakeDocker{stderr: "exec: nope: not found", exitCode: code}
		ex := newExecutor(fake, "c", nil, 0)

		_, err := ex.Execute(context.Background(), execute.NewCommand("nope"))
		var execErr *execute.ExecutionError
		require.True(t, errors.As(err, &execErr), "exit %d", code)
		assert.Contains(t, err.Error(), "not found")
	}
}

func TestExecute_EmptyCommand(t *testing.T) {
	ex := newExecutor(&fakeDocker{}, "c", nil, 0)
	_, err := ex.Execute(context.Background(), execute.NewCommand())
	var execErr *execute.ExecutionError
	assert.True(t, errors.As(err, &execErr))
}

func TestExecute_Timeout(t *testing.T) {
	ex := newExecutor(&fakeDocker{block: true}, "c", nil, 50*time.Millisecond)

	_, err := ex.Execute(context.Background(), execute.NewCommand("sleep", "10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClose_RemovesContainer(t *testing.T) {
	fake := &fakeDocker{}
	ex := newExecutor(fake, "abc", nil, 0)
	require.NoError(t, ex.Close(context.Background()))
	assert.Equal(t, "abc", fake.removed)
}
