// Package controller drives one benchmark run through its phases:
// PREPARE_BUILD, BUILD, PREPARE_RUN, RUN and COLLECT.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"toolchain-bench/internal/config"
	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/host"
	"toolchain-bench/internal/identity"
	"toolchain-bench/internal/logging"
	"toolchain-bench/internal/models"
	"toolchain-bench/internal/parser"
	"toolchain-bench/internal/results"
	"toolchain-bench/internal/workspace"

	"github.com/sirupsen/logrus"
)

// Profiler runs a command under a profiling tool and records both its own
// output and the tool's.
type Profiler interface {
	Run(ctx context.Context, cmd execute.Command, stdoutParser parser.Parser) (execute.Entry, error)
}

// ResultSink receives the record of a run in the COLLECT phase.
type ResultSink interface {
	Collect(ctx context.Context, rec *results.Record) error
}

type Deps struct {
	Registry *models.Registry
	Executor execute.Executor
	// Profiler wraps RUN commands; nil runs them bare.
	Profiler Profiler
	// Sinks receive the record after the result files are written.
	Sinks []ResultSink
	Host  *host.HostConfig
}

// Report is what a finished or aborted run leaves behind.
type Report struct {
	Identity string
	Layout   workspace.Layout
	Record   *results.Record
}

type Controller struct {
	opts     config.Options
	deps     Deps
	policies Policies
	logger   *logrus.Logger
	cmdLog   *logrus.Logger
}

func New(opts *config.Options, deps Deps) (*Controller, error) {
	if opts == nil {
		return nil, errors.New("controller: options are nil")
	}
	if deps.Registry == nil || deps.Executor == nil {
		return nil, errors.New("controller: registry and executor are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	policies, err := ParsePolicies(opts.Policies)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	return &Controller{
		opts:     *opts,
		deps:     deps,
		policies: policies,
		logger:   logging.GetLogger(),
		cmdLog:   logging.GetCommandLogger(),
	}, nil
}

// resolved holds the models and derived settings of a run.
type resolved struct {
	benchmark models.Benchmark
	compiler  models.Compiler
	machine   models.Machine
	flags     models.FlagSet
	runOpts   models.RunOptions
}

// Run executes the pipeline. Models and flags are resolved before anything
// touches the filesystem; once the run directory exists, whatever output was
// collected is written even when a later phase aborts.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	opts := c.opts

	id := runIdentity(opts)
	layout, err := workspace.For(opts.BenchmarkRoot, id)
	if err != nil {
		return nil, err
	}
	report := &Report{Identity: id, Layout: layout}

	logger := c.logger.WithFields(logrus.Fields{
		"identity":  id,
		"benchmark": opts.Benchmark,
		"machine":   opts.Machine,
		"toolchain": opts.Toolchain,
	})

	r, err := c.resolve(layout)
	if err != nil {
		return report, err
	}

	if _, err := workspace.Create(opts.BenchmarkRoot, id, opts.Wipe); err != nil {
		return report, err
	}

	rec := &results.Record{
		Identity:      id,
		Benchmark:     r.benchmark.Name(),
		Machine:       r.machine.Name(),
		Toolchain:     opts.Toolchain,
		Compiler:      r.compiler.Name(),
		BuildFlags:    r.flags.Build,
		LinkFlags:     r.flags.Link,
		RunFlags:      opts.RunFlags,
		Discriminator: opts.RunID,
		Profiled:      c.deps.Profiler != nil,
		Host:          c.deps.Host,
		Started:       time.Now(),
		Output:        &execute.CommandOutput{},
	}
	report.Record = rec

	logger.WithFields(logrus.Fields{
		"compiler":    rec.Compiler,
		"build_flags": r.flags.BuildString(),
		"link_flags":  r.flags.LinkString(),
		"iterations":  r.runOpts.Iterations,
		"profiled":    rec.Profiled,
	}).Info("Starting benchmark run")

	runErr := c.execute(ctx, r, rec)

	rec.Finished = time.Now()
	if runErr != nil {
		rec.Aborted = true
		rec.Error = runErr.Error()
		logger.WithError(runErr).WithField("entries", rec.Output.Len()).Error("Run aborted, collecting partial results")
	}

	collectErr := c.collect(ctx, layout, rec)
	if runErr != nil {
		if collectErr != nil {
			logger.WithError(collectErr).Error("Failed to collect results")
		}
		return report, runErr
	}
	if collectErr != nil {
		return report, collectErr
	}

	logger.WithFields(logrus.Fields{
		"entries":  rec.Output.Len(),
		"duration": rec.Finished.Sub(rec.Started).Round(time.Millisecond),
	}).Info("Benchmark run completed")
	return report, nil
}

// Resolve constructs the models named by opts and validates their combined
// flags without touching the filesystem. Run repeats these checks; callers
// use Resolve to fail on unknown models or rejected flags before they start
// containers or look for profiling tools.
func Resolve(opts *config.Options, registry *models.Registry) error {
	if opts == nil || registry == nil {
		return errors.New("controller: options and registry are required")
	}
	id := runIdentity(*opts)
	layout, err := workspace.For(opts.BenchmarkRoot, id)
	if err != nil {
		return err
	}
	c := &Controller{opts: *opts, deps: Deps{Registry: registry}}
	_, err = c.resolve(layout)
	return err
}

func runIdentity(opts config.Options) string {
	return identity.New(identity.Input{
		Benchmark:     opts.Benchmark,
		Machine:       opts.Machine,
		Toolchain:     opts.Toolchain,
		CompilerFlags: opts.CompilerFlags,
		LinkFlags:     opts.LinkFlags,
		RunFlags:      opts.RunFlags,
		Discriminator: opts.RunID,
	})
}

func (c *Controller) resolve(layout workspace.Layout) (*resolved, error) {
	opts := c.opts
	env := models.Env{
		Toolchain:    opts.Toolchain,
		BenchmarkDir: layout.BenchmarkDir,
		CompilerDir:  layout.CompilerDir,
	}
	reg := c.deps.Registry

	benchmark, err := reg.NewBenchmark(opts.Benchmark, env)
	if err != nil {
		return nil, err
	}
	machine, err := reg.NewMachine(opts.Machine, env)
	if err != nil {
		return nil, err
	}
	compilerName, err := reg.ResolveCompiler(opts.Toolchain, opts.Compiler)
	if err != nil {
		return nil, err
	}
	compiler, err := reg.NewCompiler(compilerName, env)
	if err != nil {
		return nil, err
	}

	combined := models.Combine(
		compiler.Flags(),
		machine.Flags(),
		benchmark.Flags(),
		models.NewFlagSet(opts.CompilerFlags, opts.LinkFlags),
	)
	flags, err := compiler.Validate(combined)
	if err != nil {
		return nil, err
	}

	runOpts, err := models.ParseRunFlags(opts.RunFlags)
	if err != nil {
		return nil, err
	}
	if opts.Iterations > 0 {
		runOpts.Iterations = opts.Iterations
	}
	if opts.Size != "" {
		runOpts.Size = opts.Size
	}
	runOpts.LibraryDirs = models.LibraryDirs(compiler.Compilers(), config.SplitList(opts.RunDeps))

	return &resolved{
		benchmark: benchmark,
		compiler:  compiler,
		machine:   machine,
		flags:     flags,
		runOpts:   runOpts,
	}, nil
}

func (c *Controller) execute(ctx context.Context, r *resolved, rec *results.Record) error {
	opts := c.opts
	compilers := r.compiler.Compilers()
	binaryName := rec.Identity

	prepareBuild := r.benchmark.PrepareBuild(config.SplitList(opts.BuildDeps))
	if err := c.runPhase(ctx, PhasePrepareBuild, prepareBuild, rec.Output, nil); err != nil {
		return err
	}

	build := r.benchmark.Build(models.BuildRequest{
		Compilers:  compilers,
		BuildFlags: r.flags.Build,
		LinkFlags:  r.flags.Link,
		BinaryName: binaryName,
		BuildVars:  config.SplitList(opts.BuildVars),
		Size:       r.runOpts.Size,
	})
	if err := c.runPhase(ctx, PhaseBuild, build, rec.Output, nil); err != nil {
		return err
	}

	prepareRun := r.benchmark.PrepareRun(config.SplitList(opts.RunDeps), compilers)
	if err := c.runPhase(ctx, PhasePrepareRun, prepareRun, rec.Output, nil); err != nil {
		return err
	}

	run, err := r.benchmark.Run(binaryName, r.runOpts)
	if err != nil {
		return fmt.Errorf("phase %s: %w", PhaseRun, err)
	}
	return c.runPhase(ctx, PhaseRun, run, rec.Output, r.benchmark.OutputParser())
}

// runPhase executes cmds in order, parsing stdout with p when it is set.
// Only RUN commands go through the profiler.
func (c *Controller) runPhase(ctx context.Context, phase Phase, cmds []execute.Command, out *execute.CommandOutput, p parser.Parser) error {
	logger := c.logger.WithField("phase", phase.String())
	logger.WithField("commands", len(cmds)).Debug("Entering phase")

	for i, cmd := range cmds {
		if cmd.Empty() {
			logger.WithField("index", i).Debug("Skipping empty command")
			continue
		}
		if err := ctx.Err(); err != nil {
			return &execute.ExecutionError{Args: cmd.Args(), Err: err}
		}

		logger.WithField("command", cmd.String()).Info("Running command")

		var (
			entry execute.Entry
			err   error
		)
		if phase == PhaseRun && c.deps.Profiler != nil {
			entry, err = c.deps.Profiler.Run(ctx, cmd, p)
		} else {
			entry, err = execute.Run(ctx, c.deps.Executor, cmd, p)
		}
		if err != nil {
			return fmt.Errorf("phase %s: %w", phase, err)
		}

		entry.Phase = phase.String()
		out.Append(entry)
		c.echo(phase, entry)

		if entry.Failed() {
			policy := c.policies.For(phase)
			logger.WithFields(logrus.Fields{
				"command":   strings.Join(entry.Args, " "),
				"exit_code": entry.ExitCode,
				"policy":    policy.String(),
			}).Warn("Command exited with non-zero status")
			if policy == PolicyAbort {
				return &PhaseError{Phase: phase, Args: entry.Args, ExitCode: entry.ExitCode}
			}
		}
	}
	return nil
}

// echo forwards child output to the command logger. Stderr is only ever
// logged; it never fails a phase.
func (c *Controller) echo(phase Phase, entry execute.Entry) {
	fields := logrus.Fields{"phase": phase.String(), "command": entry.Args[0]}
	if s := strings.TrimSpace(entry.Stdout); s != "" {
		c.cmdLog.WithFields(fields).Info(s)
	}
	if s := strings.TrimSpace(entry.Stderr); s != "" {
		c.cmdLog.WithFields(fields).Warn(s)
	}
}

func (c *Controller) collect(ctx context.Context, layout workspace.Layout, rec *results.Record) error {
	logger := c.logger.WithField("phase", PhaseCollect.String())

	sinks := append([]ResultSink{results.NewWriter(layout.ResultsDir)}, c.deps.Sinks...)
	var errs []error
	for _, sink := range sinks {
		// Collection runs even after cancellation so partial results land.
		if err := sink.Collect(context.WithoutCancel(ctx), rec); err != nil {
			logger.WithError(err).Error("Result sink failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
