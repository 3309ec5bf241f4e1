// Package profiler wraps commands with `perf stat` and parses the counter
// summary perf prints on stderr.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/host"
	"toolchain-bench/internal/logging"
	"toolchain-bench/internal/parser"

	"github.com/sirupsen/logrus"
)

// MaxParanoid is the highest perf_event_paranoid level perf stat can work
// with for an unprivileged user.
const MaxParanoid = 2

// StatFields is the field table for the `perf stat` summary block.
var StatFields = parser.FieldTable{
	{Name: "instructions", Pattern: `([\d,]+)\s+instructions`},
	{Name: "cycles", Pattern: `([\d,]+)\s+cycles`},
	{Name: "cpu-migrations", Pattern: `([\d,]+)\s+cpu-migrations`},
	{Name: "context-switches", Pattern: `([\d,]+)\s+context-switches`},
	{Name: "page-faults", Pattern: `([\d,]+)\s+page-faults`},
	{Name: "branches", Pattern: `([\d,]+)\s+branches`},
	{Name: "branch-misses", Pattern: `([\d,]+)\s+branch-misses`},
	{Name: "elapsed", Pattern: `(\d+\.\d+)\s+(?:\+-\s+[\d.]+\s+)?seconds time elapsed`},
}

var statParser = parser.MustNew(StatFields)

// StatParser returns the parser used for perf stat output.
func StatParser() parser.Parser {
	return statParser
}

// ToolUnavailableError reports that the perf binary, or kernel support for
// perf events, is missing.
type ToolUnavailableError struct {
	Tool string
	Err  error
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("tool unavailable: %s: %v", e.Tool, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error {
	return e.Err
}

// PermissionError reports a perf_event_paranoid level above MaxParanoid.
type PermissionError struct {
	Level int
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission error: perf_event_paranoid is %d, need %d or lower", e.Level, MaxParanoid)
}

// Perf decorates an Executor so every command runs under `perf stat`.
type Perf struct {
	exec         execute.Executor
	binary       string
	paranoidPath string
	repeat       int
	events       []string
	logger       *logrus.Logger
}

type Option func(*Perf)

// WithBinary uses the perf executable at path instead of searching PATH.
func WithBinary(path string) Option {
	return func(p *Perf) { p.binary = path }
}

// WithRepeat asks perf to run the command n times and report the mean and
// variance. Values below 2 disable repetition.
func WithRepeat(n int) Option {
	return func(p *Perf) { p.repeat = n }
}

// WithEvents restricts collection to the named events. An empty list keeps
// perf's default event set.
func WithEvents(events []string) Option {
	return func(p *Perf) {
		p.events = nil
		for _, e := range events {
			if e = strings.TrimSpace(e); e != "" {
				p.events = append(p.events, e)
			}
		}
	}
}

// WithParanoidPath overrides where the perf_event_paranoid level is read.
func WithParanoidPath(path string) Option {
	return func(p *Perf) { p.paranoidPath = path }
}

// New validates that perf is installed and the host allows counter access.
func New(base execute.Executor, opts ...Option) (*Perf, error) {
	p := &Perf{
		exec:         base,
		paranoidPath: host.PerfEventParanoidPath,
		repeat:       1,
		logger:       logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"perf":   p.binary,
		"repeat": p.repeat,
		"events": p.events,
	}).Debug("perf stat wrapper ready")

	return p, nil
}

func (p *Perf) validate() error {
	if p.binary == "" {
		path, err := exec.LookPath("perf")
		if err != nil {
			return &ToolUnavailableError{Tool: "perf", Err: err}
		}
		p.binary = path
	} else {
		abs, err := filepath.Abs(p.binary)
		if err != nil {
			return &ToolUnavailableError{Tool: p.binary, Err: err}
		}
		info, err := os.Stat(abs)
		if err != nil {
			return &ToolUnavailableError{Tool: p.binary, Err: err}
		}
		if info.IsDir() {
			return &ToolUnavailableError{Tool: p.binary, Err: errors.New("is a directory")}
		}
		p.binary = abs
	}

	level, err := host.ReadPerfEventParanoid(p.paranoidPath)
	if err != nil {
		return &ToolUnavailableError{Tool: "perf_event", Err: err}
	}
	if level > MaxParanoid {
		return &PermissionError{Level: level}
	}
	return nil
}

// Binary is the resolved perf executable.
func (p *Perf) Binary() string {
	return p.binary
}

// StatArgs is the `perf stat` prefix including configured options.
func (p *Perf) StatArgs() []string {
	args := []string{p.binary, "stat"}
	if p.repeat > 1 {
		args = append(args, "-r", strconv.Itoa(p.repeat))
	}
	if len(p.events) > 0 {
		args = append(args, "-e", strings.Join(p.events, ","))
	}
	return args
}

// Wrap returns cmd prefixed with the perf stat invocation. A command that is
// already wrapped is returned unchanged.
func (p *Perf) Wrap(cmd execute.Command) execute.Command {
	if p.Wrapped(cmd) {
		return cmd
	}
	return cmd.WithPrefix(p.StatArgs()...)
}

// Wrapped reports whether cmd already starts with this perf binary in stat
// mode.
func (p *Perf) Wrapped(cmd execute.Command) bool {
	args := cmd.Args()
	return len(args) >= 2 && args[0] == p.binary && args[1] == "stat"
}

// Execute runs cmd under perf stat. It satisfies execute.Executor.
func (p *Perf) Execute(ctx context.Context, cmd execute.Command) (*execute.Result, error) {
	return p.exec.Execute(ctx, p.Wrap(cmd))
}

// Run executes cmd under perf stat, parsing stdout with stdoutParser and
// stderr with the perf stat parser. The recorded Args are the unwrapped
// command.
func (p *Perf) Run(ctx context.Context, cmd execute.Command, stdoutParser parser.Parser) (execute.Entry, error) {
	entry, err := execute.Run(ctx, p, cmd, stdoutParser)
	if err != nil {
		return entry, err
	}
	entry.Args = cmd.Args()
	entry.Profile = statParser.Parse(entry.Stderr)
	return entry, nil
}
