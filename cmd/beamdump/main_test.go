package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/g5t/McStasScript/pkg/beamdump"
	"github.com/g5t/McStasScript/pkg/database"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"energy=2.5", "slit=0.01", "mode=fast", "flag=true", "n=3"})
	require.NoError(t, err)

	got := make(map[string]any, len(params))
	for name, p := range params {
		got[name] = p.Scalar()
	}

	assert.Equal(t, map[string]any{
		"energy": 2.5,
		"slit":   0.01,
		"mode":   "fast",
		"flag":   true,
		"n":      int64(3),
	}, got)
}

func TestParseParams_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
	}{
		{name: "no equals", pairs: []string{"energy"}},
		{name: "empty name", pairs: []string{"=1"}},
		{name: "duplicate", pairs: []string{"a=1", "a=2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseParams(tt.pairs)
			require.Error(t, err)
		})
	}
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		raw      string
		expected any
	}{
		{raw: "1e3", expected: 1000.0},
		{raw: "-4", expected: int64(-4)},
		{raw: "9007199254740993", expected: int64(9007199254740993)},
		{raw: "2.0", expected: 2.0},
		{raw: "false", expected: false},
		{raw: "T", expected: "T"},
		{raw: "inf", expected: "inf"},
		{raw: "NaN", expected: "NaN"},
		{raw: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseScalar(tt.raw))
		})
	}
}

func testDump() *beamdump.Dump {
	return beamdump.New("/data/beam.mcpl", beamdump.Raw(map[string]any{"l": 1}), "guide",
		beamdump.Options{RunName: "run", TimeLoaded: "05/03/2024 10:00:00", Comment: "c"})
}

func TestWriteDump(t *testing.T) {
	d := testDump()

	var buf bytes.Buffer

	require.NoError(t, writeDump(&buf, d, "path"))
	assert.Equal(t, "/data/beam.mcpl\n", buf.String())

	buf.Reset()
	require.NoError(t, writeDump(&buf, d, "json"))

	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, "guide", fromJSON["dump_point"])

	buf.Reset()
	require.NoError(t, writeDump(&buf, d, "yaml"))

	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "run", fromYAML["run_name"])

	buf.Reset()
	require.NoError(t, writeDump(&buf, d, "text"))
	assert.Equal(t, d.String()+"\n", buf.String())

	require.Error(t, writeDump(&buf, d, "xml"))
}

func TestWriteList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beam.mcpl")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	present := testDump()
	present.DataPath = path

	var buf bytes.Buffer
	writeList(&buf, []*beamdump.Dump{present, testDump()})

	out := buf.String()
	assert.Contains(t, out, "2.048kB")
	assert.Contains(t, out, "missing")
}

// execute runs the root command with args against a fresh config.
func execute(t *testing.T, args ...string) string {
	t.Helper()

	log.SetLevel(logrus.ErrorLevel)

	var buf bytes.Buffer

	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)

	require.NoError(t, rootCmd.Execute())

	return buf.String()
}

func seed(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "beam.mcpl"), []byte("MCPL"), 0o644))

	db, err := database.Open(logrus.New(), "sim", dir, nil)
	require.NoError(t, err)

	_, err = db.LoadData("beam", dataDir, beamdump.Raw(map[string]any{"energy": 5}), "first", "guide", "")
	require.NoError(t, err)

	return dir
}

func TestCommands(t *testing.T) {
	dir := seed(t)

	out := execute(t, "newest", "guide", "--path", dir, "--name", "sim", "--log-level", "error", "-o", "path")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "beam.mcpl"))

	out = execute(t, "show", "--path", dir, "--name", "sim", "--log-level", "error")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "{energy: 5}")

	out = execute(t, "config", "--path", dir, "--name", "sim", "--log-level", "error")
	assert.Contains(t, out, "name: sim")

	out = execute(t, "summary", "--output", "-", "--path", dir, "--name", "sim", "--log-level", "error")
	assert.Contains(t, out, "# Beam dump database: sim")
	assert.Contains(t, out, "| first |")

	out = execute(t, "version")
	assert.Contains(t, out, "beamdump dev")
}

func TestShow_EmptyDatabase(t *testing.T) {
	out := execute(t, "show", "--path", t.TempDir(), "--name", "empty", "--log-level", "error")
	assert.Equal(t, database.EmptyNotice+"\n", out)
}

func TestIndexCommand(t *testing.T) {
	dir := seed(t)

	t.Setenv("BEAMDUMP_INDEX_ENABLED", "true")
	t.Setenv("BEAMDUMP_INDEX_DATABASE_SQLITE_PATH", filepath.Join(t.TempDir(), "index.db"))

	out := execute(t, "index", "--path", dir, "--name", "sim", "--log-level", "error")
	assert.Contains(t, out, "indexed 1 records of sim")

	out = execute(t, "newest", "guide", "--from-index", "--path", dir, "--name", "sim",
		"--log-level", "error", "-o", "path")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "beam.mcpl"))

	newestFromIndex = false
}

func TestWaitForShutdown(t *testing.T) {
	log.SetLevel(logrus.ErrorLevel)

	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM

	done := make(chan struct{})

	go func() {
		waitForShutdown(context.Background(), sigCh)
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunIndexWatch_StopsWithContext(t *testing.T) {
	dir := seed(t)

	t.Setenv("BEAMDUMP_INDEX_ENABLED", "true")
	t.Setenv("BEAMDUMP_INDEX_DATABASE_SQLITE_PATH", filepath.Join(t.TempDir(), "index.db"))

	// Load the config through the root command without a watch interval.
	execute(t, "index", "--path", dir, "--name", "sim", "--log-level", "error")

	prev := indexWatch
	indexWatch = 10 * time.Millisecond

	t.Cleanup(func() { indexWatch = prev })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- runIndexWatch(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("index watcher did not stop after its context was cancelled")
	}
}
