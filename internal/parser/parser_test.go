package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StripsThousandsSeparators(t *testing.T) {
	p, err := New(FieldTable{{Name: "instructions", Pattern: `([\d,]+)\s+instructions`}})
	require.NoError(t, err)

	got := p.Parse("   1,234,567 instructions   #  0.98  insn per cycle\n")
	require.Contains(t, got, "instructions")
	assert.Equal(t, int64(1234567), got["instructions"])
}

func TestParse_MissingFieldIsOmitted(t *testing.T) {
	p := MustNew(FieldTable{
		{Name: "cycles", Pattern: `([\d,]+)\s+cycles`},
		{Name: "elapsed", Pattern: `(\d+\.\d+)\s+seconds time elapsed`},
	})

	got := p.Parse("0.501234 seconds time elapsed")
	assert.NotContains(t, got, "cycles")
	assert.Equal(t, 0.501234, got["elapsed"])
	assert.Len(t, got, 1)
}

func TestParse_FirstMatchWins(t *testing.T) {
	p := MustNew(FieldTable{{Name: "score", Pattern: `score:\s*(\d+)`}})

	got := p.Parse("score: 10\nscore: 20\n")
	assert.Equal(t, int64(10), got["score"])
}

func TestParse_NonNumericStaysString(t *testing.T) {
	p := MustNew(FieldTable{{Name: "gosa", Pattern: `Gosa\s+:\s+(\d+[^\s]*)`}})

	got := p.Parse("Gosa :  1.234e-05 \n")
	assert.Equal(t, "1.234e-05", got["gosa"])
}

func TestParse_IsPure(t *testing.T) {
	p := MustNew(FieldTable{{Name: "n", Pattern: `n=(\d+)`}})

	a := p.Parse("n=3")
	a["n"] = int64(99)
	b := p.Parse("n=3")
	assert.Equal(t, int64(3), b["n"])
}

func TestNew_RejectsInvalidTables(t *testing.T) {
	cases := map[string]FieldTable{
		"no group":   {{Name: "a", Pattern: `\d+`}},
		"two groups": {{Name: "a", Pattern: `(\d+)\s+(\w+)`}},
		"bad regexp": {{Name: "a", Pattern: `(\d+`}},
		"empty name": {{Name: "", Pattern: `(\d+)`}},
		"duplicate":  {{Name: "a", Pattern: `(\d+)`}, {Name: "a", Pattern: `(\w+)`}},
	}
	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(table)
			assert.Error(t, err)
		})
	}
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, int64(42), Coerce("42"))
	assert.Equal(t, int64(1000), Coerce("1,000"))
	assert.Equal(t, 3.5, Coerce("3.5"))
	assert.Equal(t, 1234.5, Coerce("1,234.5"))
	assert.Equal(t, "abc", Coerce("abc"))
	assert.Equal(t, ",", Coerce(","))
	assert.Equal(t, "99999999999999999999999", Coerce("99999999999999999999999"))
}

func TestNames_KeepsTableOrder(t *testing.T) {
	p := MustNew(FieldTable{
		{Name: "b", Pattern: `b=(\d+)`},
		{Name: "a", Pattern: `a=(\d+)`},
	})
	assert.Equal(t, []string{"b", "a"}, p.Names())
}
