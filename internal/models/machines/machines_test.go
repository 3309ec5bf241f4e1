package machines

import (
	"testing"

	"toolchain-bench/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Profiles(t *testing.T) {
	r := models.NewRegistry()
	require.NoError(t, Register(r))
	assert.Equal(t, []string{"aarch64", "generic", "x86_64"}, r.Names(models.KindMachine))

	m, err := r.NewMachine("x86_64", models.Env{})
	require.NoError(t, err)
	assert.Equal(t, "x86_64", m.Name())
	assert.Equal(t, []string{"-march=native", "-mtune=native"}, m.Flags().Build)

	m, err = r.NewMachine("aarch64", models.Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"-L/usr/lib/aarch64-linux-gnu"}, m.Flags().Link)

	m, err = r.NewMachine("generic", models.Env{})
	require.NoError(t, err)
	assert.Empty(t, m.Flags().Build)
}

func TestProfile_FlagsAreCopies(t *testing.T) {
	r := models.NewRegistry()
	require.NoError(t, Register(r))

	m, _ := r.NewMachine("x86_64", models.Env{})
	f := m.Flags()
	f.Build[0] = "-O0"

	assert.Equal(t, "-march=native", m.Flags().Build[0])
}
