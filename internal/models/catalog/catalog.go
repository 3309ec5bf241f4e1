// Package catalog assembles the registry of every built-in model.
package catalog

import (
	"fmt"

	"toolchain-bench/internal/models"
	"toolchain-bench/internal/models/benchmarks"
	"toolchain-bench/internal/models/compilers"
	"toolchain-bench/internal/models/machines"
)

func Default() (*models.Registry, error) {
	r := models.NewRegistry()
	for kind, register := range map[models.Kind]func(*models.Registry) error{
		models.KindBenchmark: benchmarks.Register,
		models.KindCompiler:  compilers.Register,
		models.KindMachine:   machines.Register,
	} {
		if err := register(r); err != nil {
			return nil, fmt.Errorf("register %s models: %w", kind, err)
		}
	}
	return r, nil
}
