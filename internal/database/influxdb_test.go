package database

import (
	"testing"
	"time"

	"toolchain-bench/internal/execute"
	"toolchain-bench/internal/parser"
	"toolchain-bench/internal/results"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointTags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func pointFields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestBuildPoints(t *testing.T) {
	out := &execute.CommandOutput{}
	out.Append(execute.Entry{Phase: "BUILD", Args: []string{"make"}, Stdout: "ok"})
	out.Append(execute.Entry{
		Phase:   "RUN",
		Parsed:  parser.Fields{"score": 99.5},
		Profile: parser.Fields{"cycles": int64(4200)},
	})

	start := time.Unix(1700000000, 0)
	rec := &results.Record{
		Identity:   "sample_gcc_generic_12345678",
		Benchmark:  "sample",
		Machine:    "generic",
		Compiler:   "gcc",
		Toolchain:  "gcc",
		BuildFlags: []string{"-O3", "-g"},
		Started:    start,
		Finished:   start.Add(2 * time.Second),
		Output:     out,
	}

	points := BuildPoints(rec)
	require.Len(t, points, 2)

	entry := points[0]
	assert.Equal(t, entryMeasurement, entry.Name())
	tags := pointTags(entry)
	assert.Equal(t, "RUN", tags["phase"])
	assert.Equal(t, "1", tags["index"])
	assert.Equal(t, rec.Identity, tags["identity"])

	fields := pointFields(entry)
	assert.Equal(t, 99.5, fields["score"])
	assert.Equal(t, 4200.0, fields["perf_cycles"])
	assert.Equal(t, int64(0), fields["exit_code"])

	meta := points[1]
	assert.Equal(t, metaMeasurement, meta.Name())
	metaFields := pointFields(meta)
	assert.Equal(t, "-O3 -g", metaFields["build_flags"])
	assert.Equal(t, 2.0, metaFields["duration_seconds"])
}

func TestBuildPoints_FieldTypesAreStable(t *testing.T) {
	out := &execute.CommandOutput{}
	out.Append(execute.Entry{Phase: "RUN", Parsed: parser.Fields{"score": int64(100), "gosa": "1.2e-04"}})
	out.Append(execute.Entry{Phase: "RUN", Parsed: parser.Fields{"score": 100.5}})
	out.Append(execute.Entry{Phase: "RUN", Parsed: parser.Fields{"score": parser.Coerce("99999999999999999999")}})

	points := BuildPoints(&results.Record{Identity: "x", Output: out})
	require.Len(t, points, 4)

	first := pointFields(points[0])
	assert.Equal(t, 100.0, first["score"])
	assert.Equal(t, "1.2e-04", first["gosa_raw"])
	assert.NotContains(t, first, "gosa")

	assert.Equal(t, 100.5, pointFields(points[1])["score"])

	overflow := pointFields(points[2])
	assert.NotContains(t, overflow, "score")
	assert.Equal(t, "99999999999999999999", overflow["score_raw"])
}

func TestBuildPoints_Nil(t *testing.T) {
	assert.Empty(t, BuildPoints(nil))
}
