// Package rasterize converts region outlines into label masks aligned with
// the parent image.
package rasterize

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

// ErrEmptyRegion is returned for regions without usable geometry.
var ErrEmptyRegion = errors.New("region has no geometry")

// Label is the value written for polygon interiors.
const Label int32 = 1

// ToLabelMask rasterizes r. The mask takes the parent image's extent when r
// has a parent, otherwise the extent from the origin to the region's
// furthest coordinate.
func ToLabelMask(r region.Region) (*region.LabelMask, error) {
	h, w, err := Extent(r)
	if err != nil {
		return nil, err
	}
	return ToLabelMaskShape(r, h, w)
}

// Extent returns the mask shape ToLabelMask uses for r.
func Extent(r region.Region) (int, int, error) {
	if r.Parent != nil {
		return r.Parent.Height, r.Parent.Width, nil
	}
	if !r.IsPolygon() {
		return r.Labels.Height, r.Labels.Width, nil
	}
	if len(r.Polygon) < 3 {
		return 0, 0, fmt.Errorf("%w: %d vertices", ErrEmptyRegion, len(r.Polygon))
	}
	b := utils.BoundingBox(r.Polygon)
	return int(math.Ceil(b.MaxY)), int(math.Ceil(b.MaxX)), nil
}

// ToLabelMaskShape rasterizes r into an h x w mask. Label rasters are
// cropped or padded; polygons are filled with the even-odd rule, sampling
// each pixel at its centre.
func ToLabelMaskShape(r region.Region, h, w int) (*region.LabelMask, error) {
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("%w: extent %dx%d", ErrEmptyRegion, h, w)
	}
	if !r.IsPolygon() {
		return r.Labels.Resized(h, w), nil
	}
	if len(r.Polygon) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrEmptyRegion, len(r.Polygon))
	}

	m := region.NewLabelMask(h, w)
	FillPolygon(m, r.Polygon, Label)
	return m, nil
}

// FillPolygon writes label into every pixel of m whose centre lies inside
// pts under the even-odd rule.
func FillPolygon(m *region.LabelMask, pts []utils.Point, label int32) {
	n := len(pts)
	xs := make([]float64, 0, 8)
	for row := range m.Height {
		y := float64(row) + 0.5
		xs = xs[:0]
		for i := range n {
			a, b := pts[i], pts[(i+1)%n]
			if (a.Y > y) == (b.Y > y) {
				continue
			}
			xs = append(xs, a.X+(y-a.Y)*(b.X-a.X)/(b.Y-a.Y))
		}
		slices.Sort(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			from := max(0, int(math.Ceil(xs[k]-0.5)))
			to := min(m.Width, int(math.Ceil(xs[k+1]-0.5)))
			for col := from; col < to; col++ {
				m.Set(row, col, label)
			}
		}
	}
}
