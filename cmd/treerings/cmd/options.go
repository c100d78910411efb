package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/treerings/internal/options"
)

// optionsCmd manages the stored segment-trunk options.
var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show or change the stored segmentation options",
	Long: `The segment-trunk options are stored as one line of key=value tokens.
The file is created with the defaults the first time it is read.

Examples:
  treerings options show
  treerings options set scale=4 thresholding=Otsu do
  treerings options set no-do
  treerings options reset`,
}

var optionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := optionsFile(GetConfig())
		if err != nil {
			return err
		}
		o, err := f.Load()
		if err != nil {
			return err
		}
		printOptions(cmd.OutOrStdout(), f, o)
		return nil
	},
}

var optionsSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change stored options",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := optionsFile(GetConfig())
		if err != nil {
			return err
		}
		o, err := f.Set(args...)
		if err != nil {
			return err
		}
		printOptions(cmd.OutOrStdout(), f, o)
		return nil
	},
}

var optionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := optionsFile(GetConfig())
		if err != nil {
			return err
		}
		o, err := f.Reset()
		if err != nil {
			return err
		}
		printOptions(cmd.OutOrStdout(), f, o)
		return nil
	},
}

func printOptions(w io.Writer, f *options.File, o options.Options) {
	_, _ = fmt.Fprintf(w, "File: %s\n", f.Path)
	_, _ = fmt.Fprintf(w, "Options: %s\n", options.Format(f.Schema, o))
}

func init() {
	optionsCmd.AddCommand(optionsShowCmd, optionsSetCmd, optionsResetCmd)
	rootCmd.AddCommand(optionsCmd)
}
