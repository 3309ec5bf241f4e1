package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptions_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TB_TOOLCHAIN", "/opt/clang+llvm-17")
	path := writeConfig(t, `
benchmark: himeno
machine: x86_64
toolchain: ${TB_TOOLCHAIN}
compiler_flags: "-O2 -g"
iterations: 3
benchmark_root: /tmp/runs
timeout: 90s
policies:
  run: abort
perf:
  repeat: 5
  events: [cycles, instructions]
`)

	opts, content, err := LoadOptionsWithContent(path)
	require.NoError(t, err)
	assert.Contains(t, content, "${TB_TOOLCHAIN}")
	assert.Equal(t, "/opt/clang+llvm-17", opts.Toolchain)
	assert.Equal(t, 3, opts.Iterations)
	assert.Equal(t, 90*time.Second, opts.Timeout)
	assert.Equal(t, "abort", opts.Policies["run"])
	assert.Equal(t, []string{"cycles", "instructions"}, opts.Perf.Events)
	require.NoError(t, opts.Validate())
}

func TestLoadOptions_UnsetVarKept(t *testing.T) {
	os.Unsetenv("TB_DOES_NOT_EXIST")
	path := writeConfig(t, "benchmark: ${TB_DOES_NOT_EXIST}\n")

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "${TB_DOES_NOT_EXIST}", opts.Benchmark)
}

func TestLoadOptions_UnknownKey(t *testing.T) {
	path := writeConfig(t, "benchmark: himeno\nbogus: 1\n")
	_, err := LoadOptions(path)
	assert.Error(t, err)
}

func TestLoadOptions_MissingFile(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestDefault_RootFromEnv(t *testing.T) {
	t.Setenv("TOOLCHAIN_BENCH_ROOT", "/data/bench")
	assert.Equal(t, "/data/bench", Default().BenchmarkRoot)

	t.Setenv("TOOLCHAIN_BENCH_ROOT", "")
	assert.Equal(t, DefaultRoot, Default().BenchmarkRoot)
}

func validOptions() *Options {
	return &Options{
		Benchmark:     "sample",
		Machine:       "generic",
		Toolchain:     "gcc",
		BenchmarkRoot: "/tmp/runs",
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Options){
		"missing benchmark": func(o *Options) { o.Benchmark = "" },
		"missing root":      func(o *Options) { o.BenchmarkRoot = "" },
		"negative iters":    func(o *Options) { o.Iterations = -1 },
		"bad log level":     func(o *Options) { o.LogLevel = "loud" },
		"bad log format":    func(o *Options) { o.LogFormat = "xml" },
		"bad policy phase":  func(o *Options) { o.Policies = map[string]string{"collect": "abort"} },
		"bad policy value":  func(o *Options) { o.Policies = map[string]string{"run": "retry"} },
		"influx no host":    func(o *Options) { o.Influx = InfluxOptions{Enabled: true, Token: "t", Org: "o", Bucket: "b"} },
		"perf off + events": func(o *Options) { o.Perf = PerfOptions{Disabled: true, Events: []string{"cycles"}} },
	}

	require.NoError(t, validOptions().Validate())
	for name, mutate := range cases {
		opts := validOptions()
		mutate(opts)
		assert.Error(t, opts.Validate(), name)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("INFLUXDB_HOST", "http://influx:8086")
	t.Setenv("INFLUXDB_TOKEN", "secret")
	t.Setenv("INFLUXDB_ORG", "lab")
	t.Setenv("INFLUXDB_BUCKET", "bench")

	opts := validOptions()
	opts.Influx.Bucket = "explicit"
	opts.ApplyEnv()

	assert.Equal(t, "http://influx:8086", opts.Influx.Host)
	assert.Equal(t, "secret", opts.Influx.Token)
	assert.Equal(t, "explicit", opts.Influx.Bucket)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList(" a,b  c,"))
	assert.Empty(t, SplitList(""))
}
