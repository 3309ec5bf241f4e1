package catalog

import (
	"testing"

	"toolchain-bench/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"himeno", "sample"}, r.Names(models.KindBenchmark))
	assert.Equal(t, []string{"clang", "gcc"}, r.Names(models.KindCompiler))
	assert.Equal(t, []string{"aarch64", "generic", "x86_64"}, r.Names(models.KindMachine))

	name, err := r.ResolveCompiler("/opt/gcc-13.2.0", "")
	require.NoError(t, err)
	assert.Equal(t, "gcc", name)
}
