package models

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

type (
	BenchmarkConstructor func(Env) (Benchmark, error)
	CompilerConstructor  func(Env) (Compiler, error)
	MachineConstructor   func(Env) (Machine, error)
)

// Registry maps names to constructors for each capability family. Nothing
// is discovered implicitly; every model must be registered.
type Registry struct {
	benchmarks map[string]BenchmarkConstructor
	compilers  map[string]CompilerConstructor
	machines   map[string]MachineConstructor
}

func NewRegistry() *Registry {
	return &Registry{
		benchmarks: make(map[string]BenchmarkConstructor),
		compilers:  make(map[string]CompilerConstructor),
		machines:   make(map[string]MachineConstructor),
	}
}

func (r *Registry) RegisterBenchmark(name string, ctor BenchmarkConstructor) error {
	if err := checkRegistration(KindBenchmark, name, ctor == nil, r.benchmarks[name] != nil); err != nil {
		return err
	}
	r.benchmarks[name] = ctor
	return nil
}

func (r *Registry) RegisterCompiler(name string, ctor CompilerConstructor) error {
	if err := checkRegistration(KindCompiler, name, ctor == nil, r.compilers[name] != nil); err != nil {
		return err
	}
	r.compilers[name] = ctor
	return nil
}

func (r *Registry) RegisterMachine(name string, ctor MachineConstructor) error {
	if err := checkRegistration(KindMachine, name, ctor == nil, r.machines[name] != nil); err != nil {
		return err
	}
	r.machines[name] = ctor
	return nil
}

func checkRegistration(kind Kind, name string, nilCtor, exists bool) error {
	switch {
	case name == "":
		return fmt.Errorf("cannot register %s with an empty name", kind)
	case nilCtor:
		return fmt.Errorf("cannot register %s %q: nil constructor", kind, name)
	case exists:
		return fmt.Errorf("%s %q is already registered", kind, name)
	}
	return nil
}

// NewBenchmark constructs the benchmark registered as name.
func (r *Registry) NewBenchmark(name string, env Env) (Benchmark, error) {
	ctor, ok := r.benchmarks[name]
	if !ok {
		return nil, &ModelNotFoundError{Kind: KindBenchmark, Name: name}
	}
	return ctor(env)
}

// NewCompiler constructs the compiler registered as name.
func (r *Registry) NewCompiler(name string, env Env) (Compiler, error) {
	ctor, ok := r.compilers[name]
	if !ok {
		return nil, &ModelNotFoundError{Kind: KindCompiler, Name: name}
	}
	return ctor(env)
}

// NewMachine constructs the machine registered as name.
func (r *Registry) NewMachine(name string, env Env) (Machine, error) {
	ctor, ok := r.machines[name]
	if !ok {
		return nil, &ModelNotFoundError{Kind: KindMachine, Name: name}
	}
	return ctor(env)
}

// ResolveCompiler picks the compiler model for a toolchain. An explicit name
// wins; otherwise the longest registered name prefixing the toolchain's last
// path segment is used, so "/opt/clang+llvm-17.0.6" resolves to "clang".
func (r *Registry) ResolveCompiler(toolchain, explicit string) (string, error) {
	if explicit != "" {
		if _, ok := r.compilers[explicit]; !ok {
			return "", &ModelNotFoundError{Kind: KindCompiler, Name: explicit}
		}
		return explicit, nil
	}

	base := strings.ToLower(path.Base(strings.TrimRight(toolchain, "/")))
	best := ""
	for name := range r.compilers {
		if strings.HasPrefix(base, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return "", &ModelNotFoundError{Kind: KindCompiler, Name: base}
	}
	return best, nil
}

// Names lists the registered names of kind in sorted order.
func (r *Registry) Names(kind Kind) []string {
	var names []string
	switch kind {
	case KindBenchmark:
		for name := range r.benchmarks {
			names = append(names, name)
		}
	case KindCompiler:
		for name := range r.compilers {
			names = append(names, name)
		}
	case KindMachine:
		for name := range r.machines {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
