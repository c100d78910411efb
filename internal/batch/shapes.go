package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/MeKo-Tech/treerings/internal/region"
)

// shapesHeader is the napari shapes layer CSV layout. axis-0 is the row,
// axis-1 the column.
var shapesHeader = []string{"index", "shape-type", "vertex-index", "axis-0", "axis-1"}

// WriteShapes writes the polygon regions as a napari shapes CSV in the
// image's pixel frame. Label regions have no outline and are skipped.
func WriteShapes(w io.Writer, regions []region.Region) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(shapesHeader); err != nil {
		return err
	}

	index := 0
	for _, r := range regions {
		if !r.IsPolygon() || len(r.Polygon) == 0 {
			continue
		}
		for v, p := range r.Polygon {
			record := []string{
				strconv.Itoa(index),
				"polygon",
				strconv.Itoa(v),
				strconv.FormatFloat(p.Y, 'f', -1, 64),
				strconv.FormatFloat(p.X, 'f', -1, 64),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		index++
	}
	cw.Flush()
	return cw.Error()
}

// SaveShapes writes the shapes CSV to path.
func SaveShapes(path string, regions []region.Region) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: output folder chosen by the user
	if err != nil {
		return fmt.Errorf("create outline file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteShapes(f, regions)
}
