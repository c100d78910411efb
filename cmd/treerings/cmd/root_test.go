package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "treerings", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	newCLIEnv(t)

	out, err := execute("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "tree cross-section images")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "--metrics-file")
}

func TestRootCommandVersion(t *testing.T) {
	newCLIEnv(t)

	out, err := execute("--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "treerings version "))
	assert.Contains(t, out, "Commit: ")
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"segment", "batch", "calibration", "options", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	newCLIEnv(t)

	_, err := execute("--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestInvalidConfigurationIsRejected(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.run("calibration", e.blankTIFF("a.tif"), "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = e.run("calibration", e.blankTIFF("a.tif"), "--engine", "napari")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid engine")
}

func TestConfigFileIsApplied(t *testing.T) {
	e := newCLIEnv(t)
	path := filepath.Join(e.dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("measure:\n  object_type: disc\nverbose: true\n"), 0o600))

	_, err := e.run("config", "show", "--config", path)
	require.NoError(t, err)
	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "disc", cfg.Measure.ObjectType)
	assert.True(t, cfg.Verbose)

	_, err = e.run("config", "show", "--config", filepath.Join(e.dir, "missing.yaml"))
	require.Error(t, err)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv("TREERINGS_MEASURE_OBJECT_TYPE", "disc")

	_, err := e.run("segment", e.squareTIFF("a.tif"))
	require.NoError(t, err)
	assert.Equal(t, "disc", GetConfig().Measure.ObjectType)

	_, err = e.run("segment", e.squareTIFF("a.tif"), "--object-type", "slice")
	require.NoError(t, err)
	assert.Equal(t, "slice", GetConfig().Measure.ObjectType)
}

func TestMetricsFileIsWritten(t *testing.T) {
	e := newCLIEnv(t)
	metricsPath := filepath.Join(e.dir, "treerings.prom")

	_, err := e.run("segment", e.squareTIFF("a.tif"), "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `treerings_images_total{status="ok"} 1`)
	assert.Contains(t, string(data), `treerings_regions_measured_total{object_type="trunk"} 1`)
}
