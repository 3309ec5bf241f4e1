// Package benchmarks holds the benchmark models.
package benchmarks

import "toolchain-bench/internal/models"

// Register adds every benchmark in this package to r.
func Register(r *models.Registry) error {
	if err := r.RegisterBenchmark("himeno", NewHimeno); err != nil {
		return err
	}
	return r.RegisterBenchmark("sample", NewSample)
}
