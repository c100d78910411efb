package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/treerings/internal/testutil"
)

// squareOptions segment the synthetic square without smoothing.
const squareOptions = "scale=1 sigma=0 opening=1 closing=1 stroke=0 interpolation=0 min=10\n"

// cliEnv isolates one CLI invocation: its own HOME, working directory and
// options file.
type cliEnv struct {
	t       *testing.T
	dir     string
	options string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)

	opts := filepath.Join(dir, "tra-options.txt")
	require.NoError(t, os.WriteFile(opts, []byte(squareOptions), 0o600))
	return &cliEnv{t: t, dir: dir, options: opts}
}

// squareTIFF writes a 64x64 image with a dark 32x32 square at 0.5 mm per pixel.
func (e *cliEnv) squareTIFF(name string) string {
	e.t.Helper()
	img := testutil.GenerateSquare(64, 64, 16, 16, 32, 20, 240)
	return testutil.WriteTIFF(e.t, e.dir, name, img, testutil.TIFFTags{
		XResolution: testutil.Resolution(2, 1),
		Description: "ImageJ=1.54\nunit=mm\n",
	})
}

// blankTIFF writes a uniformly white, uncalibrated image.
func (e *cliEnv) blankTIFF(name string) string {
	e.t.Helper()
	return testutil.WriteTIFF(e.t, e.dir, name, testutil.GenerateSquare(16, 16, 0, 0, 0, 0, 255), testutil.TIFFTags{})
}

// run executes the root command with args and the env's options file.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return execute(append(args, "--options-file", e.options)...)
}

// execute runs the root command after resetting the state of earlier runs.
func execute(args ...string) (string, error) {
	resetFlags(rootCmd)
	cfgFile = ""
	globalConfig = nil

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
