package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/treerings/internal/batch"
)

// batchSource prepares a folder with two good images and one non-image.
func batchSource(e *cliEnv) string {
	e.t.Helper()
	src := filepath.Join(e.dir, "scans")
	require.NoError(e.t, os.Mkdir(src, 0o750))
	for _, name := range []string{"a.tif", "b.tif"} {
		require.NoError(e.t, os.Rename(e.squareTIFF(name), filepath.Join(src, name)))
	}
	require.NoError(e.t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o600))
	return src
}

func measurementFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+batch.MeasurementsSuffix))
	require.NoError(t, err)
	return matches
}

func TestBatch_ProcessesFolder(t *testing.T) {
	e := newCLIEnv(t)
	src := batchSource(e)
	outDir := filepath.Join(e.dir, "results")

	out, err := e.run("batch", src, outDir, "--include", "*.tif")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 2 image(s), 0 failed")

	assert.FileExists(t, filepath.Join(outDir, "a.csv"))
	assert.FileExists(t, filepath.Join(outDir, "b.csv"))
	assert.NoFileExists(t, filepath.Join(outDir, "notes.csv"))

	tables := measurementFiles(t, outDir)
	require.Len(t, tables, 1)
	assert.Contains(t, out, tables[0])

	data, err := os.ReadFile(tables[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "0,"))
	assert.True(t, strings.HasPrefix(lines[2], "1,"))
}

func TestBatch_Report(t *testing.T) {
	e := newCLIEnv(t)
	src := batchSource(e)
	outDir := filepath.Join(e.dir, "results")

	out, err := e.run("batch", src, outDir, "--include", "*.tif", "--report")
	require.NoError(t, err)
	assert.Contains(t, out, "Report: ")
	assert.FileExists(t, filepath.Join(outDir, "a"+batch.OverlaySuffix))

	reports, err := filepath.Glob(filepath.Join(outDir, "*"+batch.ReportSuffix))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestBatch_StopsOnFirstFailure(t *testing.T) {
	e := newCLIEnv(t)
	src := batchSource(e)
	outDir := filepath.Join(e.dir, "results")

	_, err := e.run("batch", src, outDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.txt")
	assert.Empty(t, measurementFiles(t, outDir))
}

func TestBatch_ContinueOnError(t *testing.T) {
	e := newCLIEnv(t)
	src := batchSource(e)
	outDir := filepath.Join(e.dir, "results")

	out, err := e.run("batch", src, outDir, "--continue-on-error")
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 2 image(s), 1 failed")
	assert.Contains(t, out, "Failed images:")
	assert.Contains(t, out, "notes.txt")
	assert.Len(t, measurementFiles(t, outDir), 1)
}

func TestBatch_EmptyFolderWritesNothing(t *testing.T) {
	e := newCLIEnv(t)
	src := filepath.Join(e.dir, "empty")
	require.NoError(t, os.Mkdir(src, 0o750))
	outDir := filepath.Join(e.dir, "results")

	out, err := e.run("batch", src, outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 0 image(s), 0 failed")
	assert.NoDirExists(t, outDir)
}

func TestBatch_MissingSource(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.run("batch", filepath.Join(e.dir, "nope"), filepath.Join(e.dir, "out"))
	require.Error(t, err)
}
