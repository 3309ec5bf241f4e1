package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"toolchain-bench/internal/config"
	"toolchain-bench/internal/container"
	"toolchain-bench/internal/controller"
	"toolchain-bench/internal/database"
	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/host"
	"toolchain-bench/internal/logging"
	"toolchain-bench/internal/models/catalog"
	"toolchain-bench/internal/profiler"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type runFlags struct {
	configFile    string
	compiler      string
	compilerFlags string
	linkFlags     string
	runFlags      string
	iterations    int
	size          string
	buildVars     string
	buildDeps     string
	runDeps       string
	benchmarkRoot string
	runID         string
	wipe          bool
	perfBinary    string
	perfRepeat    int
	perfEvents    []string
	noPerf        bool
	timeout       time.Duration
	dockerImage   string
	influx        bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configFile, "config", "c", "", "YAML file with run options; flags override it")
	fs.StringVar(&f.compiler, "compiler", "", "Compiler model to use instead of deriving it from the toolchain name")
	fs.StringVar(&f.compilerFlags, "compiler-flags", "", "Extra build flags, appended last")
	fs.StringVar(&f.linkFlags, "link-flags", "", "Extra link flags, appended last")
	fs.StringVar(&f.runFlags, "run-flags", "", "Flags for the run phase, e.g. \"--iterations 3 --size large\"")
	fs.IntVarP(&f.iterations, "iterations", "i", 0, "Number of run iterations (overrides --run-flags)")
	fs.StringVar(&f.size, "size", "", "Benchmark problem size")
	fs.StringVar(&f.buildVars, "build-vars", "", "Extra KEY=VALUE variables for the build")
	fs.StringVar(&f.buildDeps, "build-deps", "", "Extra dependencies fetched before the build")
	fs.StringVar(&f.runDeps, "run-deps", "", "Extra library directories for the run")
	fs.StringVar(&f.benchmarkRoot, "benchmark-root", "", "Directory that holds run trees (default $TOOLCHAIN_BENCH_ROOT or ./runs)")
	fs.StringVar(&f.runID, "run-id", "", "Run discriminator; \"uuid\" for a random one (default: process id)")
	fs.BoolVar(&f.wipe, "wipe", false, "Remove an existing run tree with the same identity")
	fs.StringVar(&f.perfBinary, "perf", "", "Path to the perf binary (default: looked up on PATH)")
	fs.IntVar(&f.perfRepeat, "perf-repeat", 0, "Repeat each run N times inside perf stat")
	fs.StringSliceVar(&f.perfEvents, "perf-events", nil, "Comma separated perf events")
	fs.BoolVar(&f.noPerf, "no-perf", false, "Run benchmarks without perf stat")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-command timeout (0 = none)")
	fs.StringVar(&f.dockerImage, "docker-image", "", "Run every command inside a container of this image")
	fs.BoolVar(&f.influx, "influx", false, "Export results to InfluxDB (INFLUXDB_* variables)")
}

// apply copies every flag the user set onto opts.
func (f *runFlags) apply(fs *pflag.FlagSet, opts *config.Options) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("compiler", func() { opts.Compiler = f.compiler })
	set("compiler-flags", func() { opts.CompilerFlags = f.compilerFlags })
	set("link-flags", func() { opts.LinkFlags = f.linkFlags })
	set("run-flags", func() { opts.RunFlags = f.runFlags })
	set("iterations", func() { opts.Iterations = f.iterations })
	set("size", func() { opts.Size = f.size })
	set("build-vars", func() { opts.BuildVars = f.buildVars })
	set("build-deps", func() { opts.BuildDeps = f.buildDeps })
	set("run-deps", func() { opts.RunDeps = f.runDeps })
	set("benchmark-root", func() { opts.BenchmarkRoot = f.benchmarkRoot })
	set("run-id", func() { opts.RunID = f.runID })
	set("wipe", func() { opts.Wipe = f.wipe })
	set("perf", func() { opts.Perf.Binary = f.perfBinary })
	set("perf-repeat", func() { opts.Perf.Repeat = f.perfRepeat })
	set("perf-events", func() { opts.Perf.Events = f.perfEvents })
	set("no-perf", func() { opts.Perf.Disabled = f.noPerf })
	set("timeout", func() { opts.Timeout = f.timeout })
	set("docker-image", func() { opts.Docker.Image = f.dockerImage })
	set("influx", func() { opts.Influx.Enabled = f.influx })
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run [benchmark machine toolchain]",
		Short: "Build and run a benchmark with a toolchain",
		Long: "Runs PREPARE_BUILD, BUILD, PREPARE_RUN and RUN for one benchmark and writes\n" +
			"the collected output to <benchmark-root>/<run-id>/results.\n" +
			"The positional arguments may be omitted when --config provides them.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 3 {
				return fmt.Errorf("expected benchmark, machine and toolchain, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(cmd.Flags(), flags, args)
			if err != nil {
				return err
			}
			if err := applyLogging(cmd.Flags(), opts); err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), opts)
		},
	}

	flags.register(runCmd.Flags())
	return runCmd
}

// buildOptions layers defaults, the config file, positional arguments and
// flags, in that order.
func buildOptions(fs *pflag.FlagSet, flags *runFlags, args []string) (*config.Options, error) {
	opts := config.Default()
	if flags.configFile != "" {
		loaded, err := config.LoadOptions(flags.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		opts = loaded
	}
	if len(args) == 3 {
		opts.Benchmark, opts.Machine, opts.Toolchain = args[0], args[1], args[2]
	}
	flags.apply(fs, opts)
	opts.ApplyEnv()
	opts.RunID = resolveRunID(opts.RunID)
	return opts, nil
}

// applyLogging applies the logging keys of the config file. Flags given on
// the command line were already applied and win.
func applyLogging(fs *pflag.FlagSet, opts *config.Options) error {
	if opts.LogLevel != "" && !fs.Changed("log-level") {
		if err := logging.SetLogLevel(opts.LogLevel); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	if opts.LogFormat != "" && !fs.Changed("log-format") {
		if err := logging.SetFormat(opts.LogFormat); err != nil {
			return err
		}
	}
	if opts.Verbosity > 0 && !fs.Changed("verbose") {
		logging.SetVerbosity(opts.Verbosity)
	}
	return nil
}

func resolveRunID(id string) string {
	switch id {
	case "":
		return strconv.Itoa(os.Getpid())
	case "uuid":
		return uuid.NewString()
	default:
		return id
	}
}

func runBenchmark(ctx context.Context, opts *config.Options) error {
	logger := logging.GetLogger()

	if err := opts.Validate(); err != nil {
		return err
	}

	registry, err := catalog.Default()
	if err != nil {
		return err
	}
	// Unknown models and rejected flags fail before any container, profiler
	// or exporter is set up.
	if err := controller.Resolve(opts, registry); err != nil {
		return err
	}

	hostConfig, err := host.Inspect(host.InspectOptions{ProbeCounters: !opts.Perf.Disabled})
	if err != nil {
		logger.WithError(err).Warn("Failed to inspect host, continuing without host report")
		hostConfig = nil
	}

	var executor execute.Executor = execute.NewLocalExecutor(opts.Timeout)
	if opts.Docker.Image != "" {
		root, err := filepath.Abs(opts.BenchmarkRoot)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("create benchmark root: %w", err)
		}
		dockerExec, err := container.Start(ctx, container.Options{
			Image:   opts.Docker.Image,
			Mounts:  []string{root},
			Timeout: opts.Timeout,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := dockerExec.Close(context.WithoutCancel(ctx)); err != nil {
				logger.WithError(err).Warn("Failed to clean up container")
			}
		}()
		executor = dockerExec
	}

	deps := controller.Deps{
		Registry: registry,
		Executor: executor,
		Host:     hostConfig,
	}

	if !opts.Perf.Disabled {
		perf, err := profiler.New(executor,
			profiler.WithBinary(opts.Perf.Binary),
			profiler.WithRepeat(opts.Perf.Repeat),
			profiler.WithEvents(opts.Perf.Events),
		)
		if err != nil {
			return fmt.Errorf("%w (use --no-perf to run without profiling)", err)
		}
		deps.Profiler = perf
	}

	if opts.Influx.Enabled {
		dbClient, err := database.NewInfluxDBClient(ctx, opts.Influx)
		if err != nil {
			return err
		}
		defer dbClient.Close()
		deps.Sinks = append(deps.Sinks, dbClient)
	}

	ctrl, err := controller.New(opts, deps)
	if err != nil {
		return err
	}

	report, err := ctrl.Run(ctx)
	if report != nil && report.Record != nil {
		logger.WithFields(logrus.Fields{
			"identity": report.Identity,
			"results":  report.Layout.ResultsDir,
		}).Info("Run finished")
	}
	return err
}
