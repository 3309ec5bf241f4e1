package benchmarks

import (
	"fmt"
	"path/filepath"
	"strings"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/models"
	"toolchain-bench/internal/parser"
)

var sampleParser = parser.MustNew(parser.FieldTable{
	{Name: "iteration", Pattern: `iteration:\s*(\d+)`},
	{Name: "score", Pattern: `score:\s*(\d+(?:\.\d+)?)`},
})

var scriptQuote = strings.NewReplacer(`"`, `'`, "$", "", "`", "", `\`, "")

// Sample is a self-contained benchmark that needs nothing but a POSIX
// shell. Its "build" writes a script that reports a fixed score, which makes
// it useful to check a host and the pipeline end to end.
type Sample struct {
	root string
}

func NewSample(env models.Env) (models.Benchmark, error) {
	if env.BenchmarkDir == "" {
		return nil, fmt.Errorf("sample: benchmark directory not set")
	}
	return &Sample{root: filepath.Join(env.BenchmarkDir, "sample")}, nil
}

func (s *Sample) Name() string {
	return "sample"
}

func (s *Sample) PrepareBuild([]string) []execute.Command {
	return []execute.Command{execute.NewCommand("mkdir", "-p", s.root)}
}

func (s *Sample) Build(req models.BuildRequest) []execute.Command {
	path := s.binary(req.BinaryName)
	script := fmt.Sprintf("#!/bin/sh\necho \"cflags: %s\"\necho \"iteration: ${1:-0}\"\necho \"score: 100.0\"\n",
		scriptQuote.Replace(strings.Join(req.BuildFlags, " ")))
	return []execute.Command{
		execute.NewCommand("sh", "-c", `printf '%s' "$1" > "$2" && chmod +x "$2"`, "sample-build", script, path),
	}
}

func (s *Sample) PrepareRun([]string, models.Compilers) []execute.Command {
	return nil
}

func (s *Sample) Run(binaryName string, opts models.RunOptions) ([]execute.Command, error) {
	if opts.Iterations < 1 {
		return nil, fmt.Errorf("sample: iterations must be at least 1, got %d", opts.Iterations)
	}
	cmds := make([]execute.Command, 0, opts.Iterations)
	for i := 1; i <= opts.Iterations; i++ {
		args := append([]string{s.binary(binaryName), fmt.Sprint(i)}, opts.Args...)
		cmds = append(cmds, execute.NewCommand(args...).WithDir(s.root))
	}
	return cmds, nil
}

func (s *Sample) Flags() models.FlagSet {
	return models.NewFlagSet("-DSAMPLE", "")
}

func (s *Sample) OutputParser() parser.Parser {
	return sampleParser
}

func (s *Sample) binary(name string) string {
	if name == "" {
		name = "sample"
	}
	return filepath.Join(s.root, name)
}
