package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/treerings/internal/config"
	"github.com/MeKo-Tech/treerings/internal/engine/fiji"
	"github.com/MeKo-Tech/treerings/internal/engine/trunk"
)

func TestCalibration_PrintsTags(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("calibration", e.squareTIFF("disc.tif"))
	require.NoError(t, err)
	assert.Contains(t, out, "Pixel size: 0.5 mm\n")
	assert.Contains(t, out, "Defaulted: false\n")

	out, err = e.run("calibration", e.blankTIFF("blank.tif"))
	require.NoError(t, err)
	assert.Contains(t, out, "Pixel size: 1 pixel\n")
	assert.Contains(t, out, "Defaulted: true\n")

	_, err = e.run("calibration", filepath.Join(e.dir, "missing.tif"))
	assert.Error(t, err)
}

func TestOptions_ShowSetReset(t *testing.T) {
	e := newCLIEnv(t)
	path := filepath.Join(e.dir, "opts", "tra-options.txt")

	out, err := execute("options", "show", "--options-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "File: "+path)
	assert.Contains(t, out, "Options: scale=8 sigma=2 thresholding=Mean")
	assert.FileExists(t, path)

	out, err = execute("options", "set", "scale=4", "do", "--options-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scale=4 ")
	assert.Contains(t, out, " do")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scale=4 ")

	_, err = execute("options", "set", "bogus=1", "--options-file", path)
	require.Error(t, err)

	out, err = execute("options", "reset", "--options-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scale=8 ")
	assert.NotContains(t, out, " do")
}

func TestOptions_DefaultLocationUnderFiji(t *testing.T) {
	e := newCLIEnv(t)
	fijiDir := filepath.Join(e.dir, "Fiji.app")

	out, err := execute("options", "show", "--fiji-dir", fijiDir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(fijiDir, "plugins", "mri-tree-rings-tool", "tra-options.txt"))
}

func TestConfigInit(t *testing.T) {
	e := newCLIEnv(t)

	out, err := execute("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "treerings.yaml")
	assert.FileExists(t, filepath.Join(e.dir, "treerings.yaml"))

	_, err = execute("config", "init")
	require.Error(t, err)

	custom := filepath.Join(e.dir, "custom.yaml")
	_, err = execute("config", "init", custom)
	require.NoError(t, err)
	assert.FileExists(t, custom)
}

func TestConfigShow(t *testing.T) {
	e := newCLIEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "treerings.yaml"), []byte("engine:\n  kind: fiji\n"), 0o600))

	out, err := execute("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "treerings.yaml\n")
	assert.Contains(t, out, "kind: fiji\n")
}

func TestNewEngine(t *testing.T) {
	cfg := config.DefaultConfig()

	eng, err := newEngine(&cfg)
	require.NoError(t, err)
	assert.Equal(t, trunk.Name, eng.Name())

	cfg.Engine.Kind = config.EngineFiji
	eng, err = newEngine(&cfg)
	require.NoError(t, err)
	assert.Equal(t, fiji.Name, eng.Name())

	cfg.Engine.Kind = "napari"
	_, err = newEngine(&cfg)
	assert.Error(t, err)
}
