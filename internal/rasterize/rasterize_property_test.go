package rasterize

import (
	"testing"

	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestToLabelMask_RectangleArea verifies integer rectangles fill exactly
// width*height pixels.
func TestToLabelMask_RectangleArea(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pixel count equals rectangle area", prop.ForAll(
		func(x0, y0, w, h int) bool {
			pts := square(float64(x0), float64(y0), 1)
			pts[1].X, pts[2].X = float64(x0+w), float64(x0+w)
			pts[2].Y, pts[3].Y = float64(y0+h), float64(y0+h)
			r := region.NewPolygon("rect", pts)
			r.Parent = &region.Parent{Height: 128, Width: 128}

			m, err := ToLabelMask(r)
			return err == nil && m.Count(Label) == w*h
		},
		gen.IntRange(0, 60),
		gen.IntRange(0, 60),
		gen.IntRange(1, 60),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}
