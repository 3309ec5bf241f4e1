// Package models defines the three capability families a run is composed
// of (Benchmark, Compiler, Machine) and the registry that resolves them by
// name.
package models

import (
	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/parser"
)

// Compiler roles used as keys of Compilers.
const (
	RoleCC      = "cc"
	RoleCXX     = "cxx"
	RoleFortran = "fortran"
	RoleLib     = "lib"
)

// Compilers maps a language role to the binary (or, for RoleLib, the
// runtime library directory) of the active toolchain.
type Compilers map[string]string

// Env is what every model constructor receives about the run it belongs to.
type Env struct {
	// Toolchain is the toolchain identifier as given by the user, usually
	// an install prefix.
	Toolchain string
	// BenchmarkDir holds sources and binaries of the benchmark.
	BenchmarkDir string
	// CompilerDir is reserved for the toolchain of this run.
	CompilerDir string
}

// BuildRequest carries everything a benchmark needs to produce its build
// commands.
type BuildRequest struct {
	Compilers  Compilers
	BuildFlags []string
	LinkFlags  []string
	BinaryName string
	BuildVars  []string
	// Size is the problem size class requested by the user, if any.
	Size string
}

// RunOptions controls how a benchmark expands its run phase.
type RunOptions struct {
	Iterations int
	Size       string
	Args       []string

	// LibraryDirs are searched for shared libraries by the benchmark
	// binary, see LibraryDirs.
	LibraryDirs []string
}

// LibraryDirs lists the toolchain runtime directory followed by the extra
// run dependencies.
func LibraryDirs(compilers Compilers, extraDeps []string) []string {
	var dirs []string
	if lib := compilers[RoleLib]; lib != "" {
		dirs = append(dirs, lib)
	}
	return append(dirs, extraDeps...)
}

// Benchmark produces the lifecycle commands of one benchmark program.
type Benchmark interface {
	Name() string
	PrepareBuild(extraDeps []string) []execute.Command
	Build(req BuildRequest) []execute.Command
	PrepareRun(extraDeps []string, compilers Compilers) []execute.Command
	// Run returns one command per requested iteration, in execution order.
	Run(binaryName string, opts RunOptions) ([]execute.Command, error)
	Flags() FlagSet
	OutputParser() parser.Parser
}

// Compiler describes a toolchain.
type Compiler interface {
	Name() string
	Compilers() Compilers
	Flags() FlagSet
	// Validate normalises the combined flags or rejects them with a
	// *ValidationError.
	Validate(flags FlagSet) (FlagSet, error)
}

// Machine contributes target tuning flags.
type Machine interface {
	Name() string
	Flags() FlagSet
}
