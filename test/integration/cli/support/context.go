package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/treerings/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir  string
	TempDir     string
	OptionsFile string
	EnvVars     []string
}

// NewTestContext creates a scenario context with its own temporary
// directory, HOME and segmentation options file.
func NewTestContext() (*TestContext, error) {
	workingDir, err := testutil.GetProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to locate project root: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "treerings-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		WorkingDir:  workingDir,
		TempDir:     tempDir,
		OptionsFile: filepath.Join(tempDir, "tra-options.txt"),
	}
	ctx.AddEnvVar("HOME", tempDir)
	ctx.AddEnvVar("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg"))
	ctx.AddEnvVar("TREERINGS_ENGINE_OPTIONS_FILE", ctx.OptionsFile)
	return ctx, nil
}

// Cleanup removes the scenario's temporary directory.
func (testCtx *TestContext) Cleanup() error {
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// Path resolves a scenario-relative path inside the temporary directory.
func (testCtx *TestContext) Path(rel string) string {
	return filepath.Join(testCtx.TempDir, filepath.FromSlash(rel))
}

// substituteCommandVariables replaces {tmp} with the scenario directory.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
}
