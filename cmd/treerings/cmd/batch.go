package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/treerings/internal/batch"
	"github.com/MeKo-Tech/treerings/internal/common"
)

// batchCmd processes every image of a folder.
var batchCmd = &cobra.Command{
	Use:   "batch <source> <output>",
	Short: "Segment and measure every image in a folder",
	Long: `Process the images of a folder one after another and collect all
measurements into a single table.

For every image an outline file <stem>.csv (napari shapes) is written to the
output folder. After the last image the table is saved as
<timestamp>_trunk-measurements.csv. With --report an overlay PNG per image and
<timestamp>_trunk-report.pdf are written as well.

By default the first failing image ends the batch; --continue-on-error skips
it and reports the failures at the end.

Examples:
  treerings batch scans/ results/
  treerings batch scans/ results/ --include "*.tif" --include "*.tiff"
  treerings batch scans/ results/ --continue-on-error --report --progress`,
	Args: cobra.ExactArgs(2),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringSlice("include", nil, "file name patterns to process (default all files)")
	batchCmd.Flags().Bool("continue-on-error", false, "skip failing images instead of stopping")
	batchCmd.Flags().Bool("report", false, "write overlay images and a PDF report")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().Bool("rings", false, "also detect rings and the pith with the ONNX models")
	batchCmd.Flags().String("object-type", "", "object type of untagged regions (default trunk)")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	showProgress, _ := cmd.Flags().GetBool("progress")

	p, cleanup, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := batch.NewRunner(p, args[0], args[1])
	runner.Include = cfg.Batch.Include
	runner.ContinueOnError = cfg.Batch.ContinueOnError
	runner.Report = cfg.Batch.Report

	reporters := []batch.Progress{batch.NewLogProgress(slog.Default(), slog.LevelInfo)}
	if showProgress {
		reporters = append(reporters, batch.NewConsoleProgress(cmd.ErrOrStderr(), ""))
	}
	runner.Progress = batch.NewMultiProgress(reporters...)

	// Skipped images are not yielded, so any error here ends the batch.
	for _, err := range runner.Run(cmd.Context()) {
		if err != nil {
			return err
		}
	}

	s := runner.Summary()
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Processed %d image(s), %d failed in %s (%s)\n",
		s.Processed, s.Failed, s.Elapsed.Round(time.Millisecond), common.Rate(s.Processed, s.Elapsed))
	if s.Table != "" {
		_, _ = fmt.Fprintf(w, "Measurements: %s\n", s.Table)
	}
	if s.Report != "" {
		_, _ = fmt.Fprintf(w, "Report: %s\n", s.Report)
	}
	if err := runner.Failed(); err != nil {
		_, _ = fmt.Fprintf(w, "Failed images:\n%v\n", err)
	}
	return nil
}
