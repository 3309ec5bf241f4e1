package benchmarks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/models"
	"toolchain-bench/internal/parser"
)

const himenoURL = "http://accc.riken.jp/en/wp-content/uploads/sites/2/2015/07/himenobmt.c.zip"

var himenoFields = parser.FieldTable{
	{Name: "mimax", Pattern: `\bmimax\b\s*=\s*(\d+)`},
	{Name: "mjmax", Pattern: `\bmjmax\b\s*=\s*(\d+)`},
	{Name: "mkmax", Pattern: `\bmkmax\b\s*=\s*(\d+)`},
	{Name: "imax", Pattern: `\bimax\b\s*=\s*(\d+)`},
	{Name: "jmax", Pattern: `\bjmax\b\s*=\s*(\d+)`},
	{Name: "kmax", Pattern: `\bkmax\b\s*=\s*(\d+)`},
	{Name: "cpu", Pattern: `cpu\s*:\s*(\d+[^\s]*)`},
	{Name: "gosa", Pattern: `Gosa\s*:\s*(\d+[^\s]*)`},
	{Name: "MFLOPS", Pattern: `MFLOPS measured\s*:\s*(\d+\.\d+)`},
	{Name: "score", Pattern: `Score based on MMX Pentium 200MHz\s*:\s*(\d+\.\d+)`},
}

var himenoParser = parser.MustNew(himenoFields)

// Himeno is Dr. Ryutaro Himeno's Poisson solver benchmark, built from the
// upstream C sources with make.
type Himeno struct {
	root string
}

func NewHimeno(env models.Env) (models.Benchmark, error) {
	if env.BenchmarkDir == "" {
		return nil, fmt.Errorf("himeno: benchmark directory not set")
	}
	return &Himeno{root: filepath.Join(env.BenchmarkDir, "himeno")}, nil
}

func (h *Himeno) Name() string {
	return "himeno"
}

// PrepareBuild fetches and unpacks the sources. Extra dependencies are
// additional archives fetched next to them.
func (h *Himeno) PrepareBuild(extraDeps []string) []execute.Command {
	cmds := []execute.Command{
		execute.NewCommand("mkdir", "-p", h.root),
		execute.NewCommand("wget", "-q", "-P", h.root, himenoURL),
		execute.NewCommand("unzip", "-o", filepath.Join(h.root, "himenobmt.c.zip"), "-d", h.root),
		execute.NewCommand("lhasa", "-xw="+h.root, filepath.Join(h.root, "himenobmt.c.lzh")),
	}
	for _, dep := range extraDeps {
		cmds = append(cmds, execute.NewCommand("wget", "-q", "-P", h.root, dep))
	}
	return cmds
}

func (h *Himeno) Build(req models.BuildRequest) []execute.Command {
	vars := append([]string(nil), req.BuildVars...)
	if !hasVar(vars, "MODEL") {
		size := strings.ToUpper(req.Size)
		if size == "" {
			size = "SMALL"
		}
		vars = append(vars, "MODEL="+size)
	}

	makeArgs := []string{
		"make", "-C", h.root,
		"CXX=" + req.Compilers[models.RoleCXX],
		"CC=" + req.Compilers[models.RoleCC],
		"FC=" + req.Compilers[models.RoleFortran],
		"CFLAGS=" + strings.Join(req.BuildFlags, " "),
		"LDFLAGS=" + strings.Join(req.LinkFlags, " "),
	}
	makeArgs = append(makeArgs, vars...)

	return []execute.Command{
		execute.NewCommand(makeArgs...),
		execute.NewCommand("cp", filepath.Join(h.root, "bmt"), h.binary(req.BinaryName)),
	}
}

// PrepareRun has nothing to execute; the library path is set on the run
// commands from RunOptions.LibraryDirs.
func (h *Himeno) PrepareRun([]string, models.Compilers) []execute.Command {
	return nil
}

func (h *Himeno) Run(binaryName string, opts models.RunOptions) ([]execute.Command, error) {
	if opts.Iterations < 1 {
		return nil, fmt.Errorf("himeno: iterations must be at least 1, got %d", opts.Iterations)
	}

	base := execute.NewCommand(append([]string{h.binary(binaryName)}, opts.Args...)...).WithDir(h.root)
	if libPath := libraryPath(opts.LibraryDirs); libPath != "" {
		base = base.WithEnv("LD_LIBRARY_PATH", libPath)
	}

	cmds := make([]execute.Command, opts.Iterations)
	for i := range cmds {
		cmds[i] = base
	}
	return cmds, nil
}

func (h *Himeno) Flags() models.FlagSet {
	return models.NewFlagSet("", "-O3")
}

func (h *Himeno) OutputParser() parser.Parser {
	return himenoParser
}

func (h *Himeno) binary(name string) string {
	if name == "" {
		name = "bmt"
	}
	return filepath.Join(h.root, name)
}

// libraryPath appends the inherited LD_LIBRARY_PATH to dirs.
func libraryPath(dirs []string) string {
	if len(dirs) == 0 {
		return ""
	}
	if inherited := os.Getenv("LD_LIBRARY_PATH"); inherited != "" {
		dirs = append(dirs[:len(dirs):len(dirs)], inherited)
	}
	return strings.Join(dirs, string(os.PathListSeparator))
}

func hasVar(vars []string, name string) bool {
	for _, v := range vars {
		if strings.HasPrefix(v, name+"=") {
			return true
		}
	}
	return false
}
