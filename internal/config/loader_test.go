package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every search path at an empty temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	require.NotNil(t, l)
	assert.Same(t, viper.GetViper(), l.v)
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 512, cfg.Rings.InputSize)
}

func TestLoad_FindsFileInWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "treerings.yaml"), `
log_level: debug
engine:
  kind: fiji
  fiji_dir: /opt/Fiji.app
batch:
  include: ["*.tif"]
  continue_on_error: true
rings:
  enabled: true
  gpu:
    device: 2
`)

	l := NewLoaderWith(viper.New())
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, EngineFiji, cfg.Engine.Kind)
	assert.Equal(t, "/opt/Fiji.app", cfg.Engine.FijiDir)
	assert.Equal(t, "segment trunk", cfg.Engine.Command)
	assert.Equal(t, []string{"*.tif"}, cfg.Batch.Include)
	assert.True(t, cfg.Batch.ContinueOnError)
	assert.True(t, cfg.Rings.Enabled)
	assert.Equal(t, 2, cfg.Rings.GPU.Device)
	assert.Equal(t, "auto", cfg.Rings.GPU.MemoryLimit)
	assert.Equal(t, "treerings.yaml", filepath.Base(l.GetConfigFileUsed()))
}

func TestLoad_XDGConfigDirectory(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "xdg", "treerings", "treerings.yaml"), "measure:\n  object_type: disc\n")

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "disc", cfg.Measure.ObjectType)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "treerings.yaml"), "log_level: warn\nrings:\n  threshold: 0.4\n")
	t.Setenv("TREERINGS_LOG_LEVEL", "error")
	t.Setenv("TREERINGS_RINGS_THRESHOLD", "0.7")
	t.Setenv("TREERINGS_BATCH_REPORT", "true")

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.InDelta(t, 0.7, cfg.Rings.Threshold, 1e-9)
	assert.True(t, cfg.Batch.Report)
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("TREERINGS_ENGINE_KIND", "fiji")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("engine", "trunk", "")
	require.NoError(t, fs.Parse([]string{"--engine", "cvtrunk"}))

	l := NewLoaderWith(viper.New())
	require.NoError(t, l.BindFlag("engine.kind", fs.Lookup("engine")))
	require.NoError(t, l.BindFlag("ignored", nil))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, EngineCVTrunk, cfg.Engine.Kind)
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "treerings.yaml"), "log_level: loud\n")

	_, err := NewLoaderWith(viper.New()).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWith(viper.New()).LoadWithoutValidation()
	require.NoError(t, err)
	assert.Equal(t, "loud", cfg.LogLevel)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "treerings.yaml"), "engine: [unclosed\n")

	_, err := NewLoaderWith(viper.New()).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadWithFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yml")
	writeConfig(t, path, "metrics_file: /tmp/treerings.prom\n")

	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/treerings.prom", cfg.MetricsFile)

	_, err = NewLoaderWith(viper.New()).LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	cfg, err = NewLoaderWith(viper.New()).LoadWithFile("")
	require.NoError(t, err)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoaderGetSet(t *testing.T) {
	l := NewLoaderWith(viper.New())
	l.Set("engine.kind", "fiji")
	assert.Equal(t, "fiji", l.Get("engine.kind"))
}

func TestGenerateDefaultConfigFile_RoundTrips(t *testing.T) {
	dir := isolate(t)

	name, err := GenerateDefaultConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, "treerings.yaml", name)

	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(filepath.Join(dir, name))
	require.NoError(t, err)
	want := DefaultConfig()
	assert.Empty(t, cfg.Batch.Include)
	want.Batch.Include, cfg.Batch.Include = nil, nil
	assert.Equal(t, want, *cfg)

	_, err = GenerateDefaultConfigFile(name)
	assert.Error(t, err, "existing file must not be overwritten")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, DefaultConfig()))

	out := buf.String()
	assert.Contains(t, out, "log_level: info\n")
	assert.Contains(t, out, "engine:\n  kind: trunk\n  command: segment trunk\n")
	assert.Contains(t, out, "    memory_limit: auto\n")
}

func TestGetConfigSearchPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	assert.Equal(t, []string{".", dir, "/xdg/treerings", "/etc/treerings"}, GetConfigSearchPaths())

	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Equal(t, []string{".", dir, filepath.Join(dir, ".config", "treerings"), "/etc/treerings"}, GetConfigSearchPaths())
}
