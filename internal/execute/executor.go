// Package execute runs external processes and records their output.
//
// A non-zero exit status is a normal Result. Only a process that could not be
// launched at all (or was killed by cancellation) is reported as an
// ExecutionError.
package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"toolchain-bench/internal/logging"

	"github.com/sirupsen/logrus"
)

// Result is the captured outcome of one process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Executor runs one Command to completion.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// ExecutionError reports a Command whose program could not be started or
// was killed before it exited on its own.
type ExecutionError struct {
	Args []string
	Err  error
}

func (e *ExecutionError) Error() string {
	name := "<empty>"
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	return fmt.Sprintf("execution error: cannot run %s: %v", name, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// waitDelay bounds how long Execute waits for output pipes to close after
// the process group was killed.
const waitDelay = 2 * time.Second

// LocalExecutor runs commands as child processes of this one.
type LocalExecutor struct {
	// Env is overlaid on the parent environment for every command, before
	// the command's own overlay.
	Env []string
	// Timeout bounds each command; zero means no limit.
	Timeout time.Duration

	logger *logrus.Logger
}

func NewLocalExecutor(timeout time.Duration, env ...string) *LocalExecutor {
	return &LocalExecutor{
		Env:     env,
		Timeout: timeout,
		logger:  logging.GetLogger(),
	}
}

func (le *LocalExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	args := cmd.Args()
	if len(args) == 0 {
		return nil, &ExecutionError{Args: args, Err: errors.New("empty command")}
	}

	if le.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, le.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Dir = cmd.Dir()
	c.Env = MergeEnv(os.Environ(), le.Env, cmd.Env())
	// Children such as perf stat and sh fork the actual workload and
	// hand it our pipes, so cancellation kills the whole process group.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
	c.WaitDelay = waitDelay

	le.log().WithFields(logrus.Fields{
		"command": cmd.String(),
		"dir":     cmd.Dir(),
		"env":     cmd.Env(),
	}).Debug("Running command")

	start := time.Now()
	err := c.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, &ExecutionError{Args: args, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, &ExecutionError{Args: args, Err: err}
	}

	le.log().WithFields(logrus.Fields{
		"command":   args[0],
		"exit_code": result.ExitCode,
		"duration":  result.Duration,
	}).Debug("Command finished")

	return result, nil
}

func (le *LocalExecutor) log() *logrus.Logger {
	if le.logger == nil {
		return logging.GetLogger()
	}
	return le.logger
}
