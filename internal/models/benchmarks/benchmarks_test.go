package benchmarks

import (
	"context"
	"path/filepath"
	"testing"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const himenoOutput = `mimax = 129 mjmax = 65 mkmax = 65
imax = 128 jmax = 64 kmax =64
 Start rehearsal measurement process.
 Measure the performance in 3 times.

 MFLOPS: 2134.567890 time(s): 0.192718 1.733593e-03

 Now, start the actual measurement process.
 The loop will be excuted in 933 times
 This will take about one minute.
 Wait for a while

cpu : 60.123456 sec.
Loop executed for 933 times
Gosa : 8.370694e-04
MFLOPS measured : 2072.459123
Score based on MMX Pentium 200MHz : 62.568430
`

func TestHimeno_ParserFields(t *testing.T) {
	b, err := NewHimeno(models.Env{BenchmarkDir: "/tmp/bench"})
	require.NoError(t, err)

	got := b.OutputParser().Parse(himenoOutput)
	assert.Equal(t, int64(129), got["mimax"])
	assert.Equal(t, int64(65), got["mjmax"])
	assert.Equal(t, int64(128), got["imax"])
	assert.Equal(t, int64(64), got["kmax"])
	assert.Equal(t, 60.123456, got["cpu"])
	assert.Equal(t, "8.370694e-04", got["gosa"])
	assert.Equal(t, 2072.459123, got["MFLOPS"])
	assert.Equal(t, 62.56843, got["score"])
}

func TestHimeno_Lifecycle(t *testing.T) {
	b, err := NewHimeno(models.Env{BenchmarkDir: "/runs/x/benchmark"})
	require.NoError(t, err)
	root := "/runs/x/benchmark/himeno"

	prep := b.PrepareBuild([]string{"http://example.org/extra.zip"})
	require.Len(t, prep, 5)
	assert.Equal(t, []string{"mkdir", "-p", root}, prep[0].Args())
	assert.Equal(t, "wget", prep[4].Args()[0])

	build := b.Build(models.BuildRequest{
		Compilers:  models.Compilers{models.RoleCC: "cc", models.RoleCXX: "c++", models.RoleFortran: "fc"},
		BuildFlags: []string{"-O2", "-march=native"},
		LinkFlags:  []string{"-lm"},
		BinaryName: "himeno_run",
		Size:       "large",
	})
	require.Len(t, build, 2)
	assert.Equal(t, []string{
		"make", "-C", root, "CXX=c++", "CC=cc", "FC=fc",
		"CFLAGS=-O2 -march=native", "LDFLAGS=-lm", "MODEL=LARGE",
	}, build[0].Args())
	assert.Equal(t, []string{"cp", filepath.Join(root, "bmt"), filepath.Join(root, "himeno_run")}, build[1].Args())

	explicit := b.Build(models.BuildRequest{BuildVars: []string{"MODEL=XS"}})
	assert.Equal(t, "MODEL=XS", explicit[0].Args()[len(explicit[0].Args())-1])

	t.Setenv("LD_LIBRARY_PATH", "")
	assert.Empty(t, b.PrepareRun([]string{"/deps/lib"}, models.Compilers{models.RoleLib: "/tc/lib"}))

	libDirs := models.LibraryDirs(models.Compilers{models.RoleLib: "/tc/lib"}, []string{"/deps/lib"})
	run, err := b.Run("himeno_run", models.RunOptions{Iterations: 3, LibraryDirs: libDirs})
	require.NoError(t, err)
	require.Len(t, run, 3)
	for _, cmd := range run {
		assert.Equal(t, []string{filepath.Join(root, "himeno_run")}, cmd.Args())
		assert.Equal(t, []string{"LD_LIBRARY_PATH=/tc/lib:/deps/lib"}, cmd.Env())
	}

	// A fresh instance needs no PrepareRun call to get the same overlay.
	fresh, err := NewHimeno(models.Env{BenchmarkDir: filepath.Dir(root)})
	require.NoError(t, err)
	t.Setenv("LD_LIBRARY_PATH", "/host/lib")
	again, err := fresh.Run("himeno_run", models.RunOptions{Iterations: 1, LibraryDirs: libDirs})
	require.NoError(t, err)
	assert.Equal(t, []string{"LD_LIBRARY_PATH=/tc/lib:/deps/lib:/host/lib"}, again[0].Env())
	assert.Equal(t, []string{"/tc/lib", "/deps/lib"}, libDirs)

	bare, err := fresh.Run("himeno_run", models.RunOptions{Iterations: 1})
	require.NoError(t, err)
	assert.Empty(t, bare[0].Env())

	_, err = b.Run("himeno_run", models.RunOptions{Iterations: 0})
	assert.Error(t, err)
}

func TestSample_BuildAndRun(t *testing.T) {
	dir := t.TempDir()
	b, err := NewSample(models.Env{BenchmarkDir: dir})
	require.NoError(t, err)

	ex := execute.NewLocalExecutor(0)
	ctx := context.Background()

	var cmds []execute.Command
	cmds = append(cmds, b.PrepareBuild(nil)...)
	cmds = append(cmds, b.Build(models.BuildRequest{BinaryName: "bin", BuildFlags: []string{"-O2", `-DX="y"`}})...)
	for _, cmd := range cmds {
		res, err := ex.Execute(ctx, cmd)
		require.NoError(t, err)
		require.Equal(t, 0, res.ExitCode, res.Stderr)
	}

	run, err := b.Run("bin", models.RunOptions{Iterations: 2})
	require.NoError(t, err)
	require.Len(t, run, 2)

	for i, cmd := range run {
		entry, err := execute.Run(ctx, ex, cmd, b.OutputParser())
		require.NoError(t, err)
		assert.Equal(t, 100.0, entry.Parsed["score"])
		assert.Equal(t, int64(i+1), entry.Parsed["iteration"])
		assert.Contains(t, entry.Stdout, "cflags: -O2 -DX='y'")
	}
}

func TestRegister(t *testing.T) {
	r := models.NewRegistry()
	require.NoError(t, Register(r))
	assert.Equal(t, []string{"himeno", "sample"}, r.Names(models.KindBenchmark))

	_, err := r.NewBenchmark("himeno", models.Env{})
	assert.Error(t, err)
}
