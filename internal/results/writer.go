// Package results persists the outcome of a run as YAML artifacts in the
// run's results directory.
package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/host"
	"toolchain-bench/internal/logging"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Record is everything known about a finished (or aborted) run.
type Record struct {
	Identity      string   `yaml:"identity"`
	Benchmark     string   `yaml:"benchmark"`
	Machine       string   `yaml:"machine"`
	Toolchain     string   `yaml:"toolchain"`
	Compiler      string   `yaml:"compiler"`
	BuildFlags    []string `yaml:"build_flags"`
	LinkFlags     []string `yaml:"link_flags"`
	RunFlags      string   `yaml:"run_flags"`
	Discriminator string   `yaml:"discriminator"`
	Profiled      bool     `yaml:"profiled"`

	Started  time.Time `yaml:"started"`
	Finished time.Time `yaml:"finished"`
	Aborted  bool      `yaml:"aborted"`
	Error    string    `yaml:"error,omitempty"`

	Host *host.HostConfig `yaml:"host,omitempty"`

	Output *execute.CommandOutput `yaml:"-"`
}

type commandSummary struct {
	Phase    string   `yaml:"phase"`
	Args     []string `yaml:"args"`
	ExitCode int      `yaml:"exit_code"`
}

type metadata struct {
	Record          `yaml:",inline"`
	DurationSeconds float64          `yaml:"duration_seconds"`
	Commands        []commandSummary `yaml:"commands"`
}

// Paths names the artifacts written for one run.
type Paths struct {
	Out  string
	Err  string
	Meta string
}

func PathsFor(dir, identity string) Paths {
	return Paths{
		Out:  filepath.Join(dir, identity+".out"),
		Err:  filepath.Join(dir, identity+".err"),
		Meta: filepath.Join(dir, identity+".meta.yaml"),
	}
}

// Writer writes <id>.out, <id>.err and <id>.meta.yaml into Dir.
type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Collect writes all three artifacts. Each element of the .out list is the
// parsed stdout mapping when one exists, otherwise the raw stdout; .err does
// the same with the profiler fields and stderr.
func (w *Writer) Collect(_ context.Context, rec *Record) error {
	logger := logging.GetLogger()
	if rec == nil {
		return fmt.Errorf("result record is nil")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	var entries []execute.Entry
	if rec.Output != nil {
		entries = rec.Output.Entries()
	}

	outDoc := make([]any, 0, len(entries))
	errDoc := make([]any, 0, len(entries))
	meta := metadata{
		Record:          *rec,
		DurationSeconds: rec.Finished.Sub(rec.Started).Seconds(),
		Commands:        make([]commandSummary, 0, len(entries)),
	}
	for _, e := range entries {
		outDoc = append(outDoc, element(e.Parsed, e.Stdout))
		errDoc = append(errDoc, element(e.Profile, e.Stderr))
		meta.Commands = append(meta.Commands, commandSummary{Phase: e.Phase, Args: e.Args, ExitCode: e.ExitCode})
	}

	paths := PathsFor(w.Dir, rec.Identity)
	for path, doc := range map[string]any{paths.Out: outDoc, paths.Err: errDoc, paths.Meta: meta} {
		if err := writeYAML(path, doc); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"out":     paths.Out,
		"err":     paths.Err,
		"entries": len(entries),
	}).Info("Results written")
	return nil
}

func element(fields map[string]any, raw string) any {
	if len(fields) > 0 {
		return fields
	}
	return raw
}

// writeYAML encodes doc to a temp file in the target directory and renames
// it into place, so readers never observe a partial artifact.
func writeYAML(path string, doc any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	ok = true
	return nil
}
