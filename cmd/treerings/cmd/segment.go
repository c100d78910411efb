package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/treerings/internal/batch"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/report"
	"github.com/MeKo-Tech/treerings/internal/table"
)

// segmentCmd runs the pipeline on a single image.
var segmentCmd = &cobra.Command{
	Use:   "segment <image>",
	Short: "Segment and measure the trunk of one image",
	Long: `Segment the trunk of one cross-section image and measure it.

Without --output the measurement table is printed to stdout. With --output the
outline is written as a napari shapes CSV (<stem>.csv) next to the
measurements (<stem>_trunk-measurements.csv).

Supported formats: TIFF, PNG, JPEG, BMP

Examples:
  treerings segment disc.tif
  treerings segment disc.tif --format json
  treerings segment disc.tif --output results/ --overlay
  treerings segment disc.tif --rings --models-dir ./models`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().StringP("output", "o", "", "write outline and measurements into this directory")
	segmentCmd.Flags().StringP("format", "f", "csv", "table format on stdout (csv, json, text)")
	segmentCmd.Flags().Bool("overlay", false, "with --output, also write an overlay PNG")
	segmentCmd.Flags().Bool("rings", false, "also detect rings and the pith with the ONNX models")
	segmentCmd.Flags().String("object-type", "", "object type of untagged regions (default trunk)")

	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	overlay, _ := cmd.Flags().GetBool("overlay")

	img, err := raster.Load(args[0])
	if err != nil {
		return err
	}

	p, cleanup, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	tbl := table.New()
	out, err := p.Run(cmd.Context(), img, tbl)
	if err != nil {
		return fmt.Errorf("%s: %w", img.Name, err)
	}
	slog.Info("Image processed", "image", img.Name, "regions", len(out.Regions), "rows", len(out.Rows),
		"elapsed", out.Elapsed)

	if output == "" {
		return tbl.Write(cmd.OutOrStdout(), format)
	}

	if err := os.MkdirAll(output, 0o750); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	outline := filepath.Join(output, img.Stem()+".csv")
	if err := batch.SaveShapes(outline, out.Regions); err != nil {
		return err
	}
	measurements := filepath.Join(output, img.Stem()+batch.MeasurementsSuffix)
	if err := tbl.SaveCSV(measurements); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Outline: %s\nMeasurements: %s\n", outline, measurements)

	if overlay {
		ov := report.Overlay{Regions: out.Regions, Caption: img.Name}
		if out.Rings != nil {
			ov.Pith = &out.Rings.Pith
		}
		path := filepath.Join(output, img.Stem()+batch.OverlaySuffix)
		if err := report.SaveOverlay(path, report.RenderOverlay(img, ov)); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Overlay: %s\n", path)
	}
	return nil
}
