package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/treerings/internal/calibration"
)

// calibrationCmd prints the pixel calibration of an image.
var calibrationCmd = &cobra.Command{
	Use:   "calibration <image>",
	Short: "Print the pixel size and unit stored in an image",
	Long: `Read the physical pixel size from the TIFF XResolution tag and the unit
from the second line of the ImageDescription tag (key=unit).

Files without these tags, and non-TIFF files, report the default of one pixel
per pixel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := calibration.Read(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "Image: %s\n", args[0])
		_, _ = fmt.Fprintf(w, "Pixel size: %g %s\n", c.PixelSize, c.Unit)
		_, _ = fmt.Fprintf(w, "Defaulted: %t\n", c.Defaulted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calibrationCmd)
}
