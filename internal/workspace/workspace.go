// Package workspace owns the on-disk layout of a single run:
//
//	<root>/<identity>/compiler
//	<root>/<identity>/benchmark
//	<root>/<identity>/results
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"toolchain-bench/internal/logging"

	"github.com/sirupsen/logrus"
)

// ErrExists is returned by Create when the run tree is already present and
// wiping was not requested.
var ErrExists = errors.New("run directory already exists")

type Layout struct {
	Root         string
	RunDir       string
	CompilerDir  string
	BenchmarkDir string
	ResultsDir   string
}

// For computes the layout without touching the filesystem.
func For(root, identity string) (Layout, error) {
	if identity == "" || identity != filepath.Base(identity) {
		return Layout{}, fmt.Errorf("invalid run identity %q", identity)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve benchmark root %s: %w", root, err)
	}
	run := filepath.Join(abs, identity)
	return Layout{
		Root:         abs,
		RunDir:       run,
		CompilerDir:  filepath.Join(run, "compiler"),
		BenchmarkDir: filepath.Join(run, "benchmark"),
		ResultsDir:   filepath.Join(run, "results"),
	}, nil
}

// Create makes the run tree. With wipe set an existing tree is removed
// first; otherwise an existing tree fails with ErrExists.
func Create(root, identity string, wipe bool) (Layout, error) {
	logger := logging.GetLogger()

	l, err := For(root, identity)
	if err != nil {
		return Layout{}, err
	}

	if _, err := os.Stat(l.RunDir); err == nil {
		if !wipe {
			return Layout{}, fmt.Errorf("%w: %s (use --wipe to replace it)", ErrExists, l.RunDir)
		}
		logger.WithField("dir", l.RunDir).Info("Wiping existing run directory")
		if err := os.RemoveAll(l.RunDir); err != nil {
			return Layout{}, fmt.Errorf("wipe %s: %w", l.RunDir, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Layout{}, fmt.Errorf("stat %s: %w", l.RunDir, err)
	}

	for _, dir := range []string{l.CompilerDir, l.BenchmarkDir, l.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"run_dir":  l.RunDir,
		"identity": identity,
	}).Debug("Run directory ready")
	return l, nil
}
