package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g5t/McStasScript/pkg/beamdump"
)

func dumpAt(run, ts string) *beamdump.Dump {
	return &beamdump.Dump{RunName: run, TimeLoaded: ts}
}

func TestSortByTime(t *testing.T) {
	runs := map[string]*beamdump.Dump{
		"mid":    dumpAt("mid", "15/06/2020 12:00:00"),
		"oldest": dumpAt("oldest", "31/12/2019 23:59:59"),
		"newest": dumpAt("newest", "01/01/2021 00:00:00"),
	}

	sorted, err := SortByTime(runs)
	require.NoError(t, err)

	names := make([]string, len(sorted))
	for i, d := range sorted {
		names[i] = d.RunName
	}

	assert.Equal(t, []string{"newest", "mid", "oldest"}, names)

	latest, err := LatestByTime(runs)
	require.NoError(t, err)
	assert.Equal(t, "newest", latest.RunName)
}

func TestSortByTime_TiesKeepEveryRecord(t *testing.T) {
	runs := map[string]*beamdump.Dump{
		"b": dumpAt("b", "01/01/2020 00:00:00"),
		"a": dumpAt("a", "01/01/2020 00:00:00"),
		"c": dumpAt("c", "01/01/2020 00:00:00"),
	}

	sorted, err := SortByTime(runs)
	require.NoError(t, err)
	require.Len(t, sorted, 3)

	assert.Equal(t, "a", sorted[0].RunName)
	assert.Equal(t, "b", sorted[1].RunName)
	assert.Equal(t, "c", sorted[2].RunName)
}

func TestSortByTime_BadTimestamp(t *testing.T) {
	_, err := SortByTime(map[string]*beamdump.Dump{"x": dumpAt("x", "2020-01-01")})
	require.Error(t, err)
}

func TestLatestByTime_Empty(t *testing.T) {
	_, err := LatestByTime(map[string]*beamdump.Dump{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDumpFileStem(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "beam", want: "beam"},
		{input: "beam.mcpl", want: "beam"},
		{input: "beam.mcpl.gz", want: "beam"},
		{input: `"beam.mcpl"`, want: "beam"},
		{input: "dir/sub/beam.mcpl.gz", want: "beam"},
		// Only literal suffixes are removed.
		{input: "sample_lcp", want: "sample_lcp"},
		{input: "zig.mcpl", want: "zig"},
		{input: "out.gz", want: "out"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, dumpFileStem(tt.input))
		})
	}
}
