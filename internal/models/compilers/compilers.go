// Package compilers holds the toolchain models.
package compilers

import (
	"path/filepath"
	"strings"

	"toolchain-bench/internal/models"
)

type rejection struct {
	prefix string
	reason string
}

// family describes one compiler family independent of where it is
// installed.
type family struct {
	name       string
	cc         string
	cxx        string
	fortran    string
	buildFlags string
	libDir     string
	rejected   []rejection
}

var clang = family{
	name:       "clang",
	cc:         "clang",
	cxx:        "clang++",
	fortran:    "flang",
	buildFlags: "-O3 -ffast-math -ffp-contract=on",
	libDir:     "lib",
	rejected: []rejection{
		{"-fdump-tree-", "GCC tree dumps are not supported by clang"},
		{"-fopt-info", "GCC optimisation reports are not supported by clang"},
	},
}

var gcc = family{
	name:       "gcc",
	cc:         "gcc",
	cxx:        "g++",
	fortran:    "gfortran",
	buildFlags: "-O3",
	libDir:     "lib64",
	rejected: []rejection{
		{"-Rpass", "optimisation remarks are clang only"},
		{"-fsanitize=safe-stack", "SafeStack is clang only"},
	},
}

// Toolchain is a compiler family rooted at an install prefix. When the
// toolchain identifier is not a path the binaries are looked up on PATH.
type Toolchain struct {
	family
	root string
}

func newToolchain(f family, env models.Env) *Toolchain {
	root := ""
	if strings.ContainsRune(env.Toolchain, filepath.Separator) {
		root = filepath.Clean(env.Toolchain)
	}
	return &Toolchain{family: f, root: root}
}

func (t *Toolchain) Name() string {
	return t.name
}

func (t *Toolchain) bin(name string) string {
	if t.root == "" {
		return name
	}
	return filepath.Join(t.root, "bin", name)
}

func (t *Toolchain) Compilers() models.Compilers {
	c := models.Compilers{
		models.RoleCC:      t.bin(t.cc),
		models.RoleCXX:     t.bin(t.cxx),
		models.RoleFortran: t.bin(t.fortran),
	}
	if t.root != "" {
		c[models.RoleLib] = filepath.Join(t.root, t.libDir)
	}
	return c
}

func (t *Toolchain) Flags() models.FlagSet {
	var link string
	if t.root != "" {
		link = "-L" + filepath.Join(t.root, t.libDir)
	}
	return models.NewFlagSet(t.buildFlags, link)
}

// Validate splits every token on whitespace, drops empty ones and rejects
// flags this family does not understand. Order is preserved.
func (t *Toolchain) Validate(flags models.FlagSet) (models.FlagSet, error) {
	build, err := t.check(flags.Build)
	if err != nil {
		return models.FlagSet{}, err
	}
	link, err := t.check(flags.Link)
	if err != nil {
		return models.FlagSet{}, err
	}
	return models.FlagSet{Build: build, Link: link}, nil
}

func (t *Toolchain) check(tokens []string) ([]string, error) {
	var out []string
	for _, tok := range tokens {
		for _, flag := range strings.Fields(tok) {
			for _, r := range t.rejected {
				if strings.HasPrefix(flag, r.prefix) {
					return nil, &models.ValidationError{Compiler: t.name, Flag: flag, Reason: r.reason}
				}
			}
			out = append(out, flag)
		}
	}
	return out, nil
}

func NewClang(env models.Env) (models.Compiler, error) {
	return newToolchain(clang, env), nil
}

func NewGCC(env models.Env) (models.Compiler, error) {
	return newToolchain(gcc, env), nil
}

// Register adds every compiler in this package to r.
func Register(r *models.Registry) error {
	if err := r.RegisterCompiler(clang.name, NewClang); err != nil {
		return err
	}
	return r.RegisterCompiler(gcc.name, NewGCC)
}
