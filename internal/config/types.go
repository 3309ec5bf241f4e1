package config

import (
	"strings"
	"time"
)

// Options is the complete description of one pipeline run. It can be read
// from a YAML file and is then overridden by command line flags.
type Options struct {
	Benchmark string `yaml:"benchmark" validate:"required"`
	Machine   string `yaml:"machine" validate:"required"`
	Toolchain string `yaml:"toolchain" validate:"required"`
	// Compiler forces a compiler model instead of deriving it from the
	// toolchain name.
	Compiler string `yaml:"compiler,omitempty"`

	CompilerFlags string `yaml:"compiler_flags,omitempty"`
	LinkFlags     string `yaml:"link_flags,omitempty"`
	RunFlags      string `yaml:"run_flags,omitempty"`
	// Iterations overrides --iterations in RunFlags when non-zero.
	Iterations int    `yaml:"iterations,omitempty" validate:"gte=0"`
	Size       string `yaml:"size,omitempty"`
	BuildVars  string `yaml:"build_vars,omitempty"`
	BuildDeps  string `yaml:"build_deps,omitempty"`
	RunDeps    string `yaml:"run_deps,omitempty"`

	BenchmarkRoot string `yaml:"benchmark_root" validate:"required"`
	// RunID discriminates otherwise identical runs. Empty means the process
	// id; "uuid" asks for a random one.
	RunID string `yaml:"run_id,omitempty"`
	Wipe  bool   `yaml:"wipe,omitempty"`

	// Logging settings; the matching command line flags take precedence.
	LogLevel  string `yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `yaml:"log_format,omitempty" validate:"omitempty,oneof=text json"`
	Verbosity int    `yaml:"verbosity,omitempty" validate:"gte=0"`

	// Timeout bounds every command; zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`

	// Policies maps a phase name to "continue" or "abort".
	Policies map[string]string `yaml:"policies,omitempty" validate:"dive,keys,oneof=prepare_build build prepare_run run,endkeys,oneof=continue abort"`

	Perf   PerfOptions   `yaml:"perf"`
	Docker DockerOptions `yaml:"docker"`
	Influx InfluxOptions `yaml:"influx"`
}

type PerfOptions struct {
	Disabled bool     `yaml:"disabled,omitempty"`
	Binary   string   `yaml:"binary,omitempty"`
	Repeat   int      `yaml:"repeat,omitempty" validate:"gte=0"`
	Events   []string `yaml:"events,omitempty"`
}

type DockerOptions struct {
	// Image enables the container executor when set.
	Image string `yaml:"image,omitempty"`
}

type InfluxOptions struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty" validate:"required_if=Enabled true,omitempty,url"`
	Token   string `yaml:"token,omitempty" validate:"required_if=Enabled true"`
	Org     string `yaml:"org,omitempty" validate:"required_if=Enabled true"`
	Bucket  string `yaml:"bucket,omitempty" validate:"required_if=Enabled true"`
}

// SplitList splits a comma and/or whitespace separated list, dropping empty
// items.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
