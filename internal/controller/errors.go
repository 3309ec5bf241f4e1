package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/models"
	"toolchain-bench/internal/profiler"
	"toolchain-bench/internal/workspace"
)

// PhaseError stops the pipeline when a command exits non-zero in a phase
// whose policy is PolicyAbort.
type PhaseError struct {
	Phase    Phase
	Args     []string
	ExitCode int
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s failed: %q exited with status %d", e.Phase, strings.Join(e.Args, " "), e.ExitCode)
}

// Classify names the class of err for a one-line diagnostic.
func Classify(err error) string {
	var (
		notFound   *models.ModelNotFoundError
		validation *models.ValidationError
		tool       *profiler.ToolUnavailableError
		permission *profiler.PermissionError
		execErr    *execute.ExecutionError
		phaseErr   *PhaseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		return "ModelNotFoundError"
	case errors.As(err, &validation):
		return "ValidationError"
	case errors.As(err, &tool):
		return "ToolUnavailableError"
	case errors.As(err, &permission):
		return "PermissionError"
	case errors.Is(err, context.Canceled):
		return "Interrupted"
	case errors.As(err, &execErr):
		return "ExecutionError"
	case errors.As(err, &phaseErr):
		return "PhaseError"
	case errors.Is(err, workspace.ErrExists):
		return "WorkspaceError"
	default:
		return "Error"
	}
}
