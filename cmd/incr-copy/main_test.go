package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirs struct {
	marker string
	watch  string
	output string
}

func setupDirs(t *testing.T) dirs {
	t.Helper()
	base := t.TempDir()
	d := dirs{
		marker: filepath.Join(base, "state"),
		watch:  filepath.Join(base, "watch"),
		output: filepath.Join(base, "output"),
	}
	for _, dir := range []string{d.marker, d.watch, d.output} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	return d
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCopiesAndWritesMarker(t *testing.T) {
	d := setupDirs(t)
	require.NoError(t, os.MkdirAll(filepath.Join(d.watch, "author"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(d.watch, "author", "book.epub"), []byte("epub"), 0o644))
	resultPath := filepath.Join(d.marker, "result.json")

	out, err := execute(t,
		"-m", d.marker,
		"-w", d.watch,
		"-o", d.output,
		"--log-format", "json",
		"--result-json-file", resultPath,
	)
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(d.output, "book.epub"))
	require.NoError(t, err)
	assert.Equal(t, "epub", string(data))

	markerData, err := os.ReadFile(filepath.Join(d.marker, defaultMarkerFileName))
	require.NoError(t, err)
	var stored struct {
		CutoffTime *time.Time `json:"cutoff_time"`
	}
	require.NoError(t, json.Unmarshal(markerData, &stored))
	require.NotNil(t, stored.CutoffTime)

	resultData, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	assert.Contains(t, string(resultData), `"marker_written": true`)
	assert.Contains(t, out, `"msg":"copied"`)
}

func TestDryRunFromEnvironment(t *testing.T) {
	d := setupDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(d.watch, "book.epub"), []byte("epub"), 0o644))

	t.Setenv("CAI_MARKER_DIR", d.marker)
	t.Setenv("CAI_MARKER_FILE_NAME", "custom.json")
	t.Setenv("CAI_WATCH_DIR", d.watch)
	t.Setenv("CAI_OUTPUT_DIR", d.output)

	out, err := execute(t, "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "dry run would copy")

	entries, err := os.ReadDir(d.output)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(filepath.Join(d.marker, "custom.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFlagOverridesEnvironment(t *testing.T) {
	d := setupDirs(t)
	other := setupDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(d.watch, "book.epub"), []byte("epub"), 0o644))

	t.Setenv("CAI_MARKER_DIR", d.marker)
	t.Setenv("CAI_WATCH_DIR", other.watch)
	t.Setenv("CAI_OUTPUT_DIR", d.output)

	_, err := execute(t, "--watch-dir", d.watch)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(d.output, "book.epub"))
	assert.NoError(t, err)
}

func TestValidationErrors(t *testing.T) {
	d := setupDirs(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing marker dir", args: []string{"-w", d.watch, "-o", d.output}},
		{name: "missing watch dir", args: []string{"-m", d.marker, "-o", d.output}},
		{name: "missing output dir", args: []string{"-m", d.marker, "-w", d.watch}},
		{name: "watch dir does not exist", args: []string{"-m", d.marker, "-w", filepath.Join(d.watch, "nope"), "-o", d.output}},
		{name: "bad s3 uri", args: []string{"-m", d.marker, "-w", d.watch, "-o", "s3://"}},
		{name: "bad pattern", args: []string{"-m", d.marker, "-w", d.watch, "-o", d.output, "--exclude", "[oops"}},
		{name: "bad log format", args: []string{"-m", d.marker, "-w", d.watch, "-o", d.output, "--log-format", "xml"}},
		{name: "positional args", args: []string{"-m", d.marker, "-w", d.watch, "-o", d.output, "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, env := range envBindings {
				t.Setenv(env, "")
				os.Unsetenv(env)
			}
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
