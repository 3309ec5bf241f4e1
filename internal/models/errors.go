package models

import "fmt"

// Kind names a capability family.
type Kind string

const (
	KindBenchmark Kind = "benchmark"
	KindCompiler  Kind = "compiler"
	KindMachine   Kind = "machine"
)

// ModelNotFoundError reports a name with no registered implementation.
type ModelNotFoundError struct {
	Kind Kind
	Name string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: no %s named %q", e.Kind, e.Name)
}

// ValidationError reports a flag a compiler refuses to accept.
type ValidationError struct {
	Compiler string
	Flag     string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s rejects %q: %s", e.Compiler, e.Flag, e.Reason)
}
