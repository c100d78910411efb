// Package region defines segmentation results: outlines or label rasters
// together with an optional link to the image they were segmented from.
package region

import (
	"maps"
	"slices"

	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

// Parent is the value copy of the source image a region belongs to.
type Parent struct {
	Name   string
	Path   string
	Height int
	Width  int
}

// Region is one segmented object. Exactly one of Polygon or Labels is set.
// Polygon points use X for the column and Y for the row, in pixels measured
// from the image's top-left corner.
type Region struct {
	Name       string
	ObjectType string
	Polygon    []utils.Point
	Labels     *LabelMask
	Scale      [2]float64
	Units      [2]string
	Parent     *Parent
}

// NewPolygon returns an uncalibrated polygon region.
func NewPolygon(name string, pts []utils.Point) Region {
	return Region{
		Name:    name,
		Polygon: pts,
		Scale:   [2]float64{1, 1},
		Units:   [2]string{raster.DefaultUnit, raster.DefaultUnit},
	}
}

// NewLabels returns an uncalibrated label region.
func NewLabels(name string, m *LabelMask) Region {
	return Region{
		Name:   name,
		Labels: m,
		Scale:  [2]float64{1, 1},
		Units:  [2]string{raster.DefaultUnit, raster.DefaultUnit},
	}
}

// IsPolygon reports whether the region carries vector geometry.
func (r Region) IsPolygon() bool { return r.Labels == nil }

// WithParent links r to img by value and adopts the image's calibration.
func (r Region) WithParent(img *raster.Image) Region {
	r.Parent = &Parent{
		Name:   img.Name,
		Path:   img.Path,
		Height: img.Height(),
		Width:  img.Width(),
	}
	r.Scale = img.Scale
	r.Units = img.Units
	return r
}

// Collect gathers every region found in metadata. Values may be a region or
// a slice of regions; slices are unwrapped one level. Keys are visited in
// sorted order and anything else is ignored.
func Collect(metadata map[string]any) []Region {
	var out []Region
	for _, k := range slices.Sorted(maps.Keys(metadata)) {
		switch v := metadata[k].(type) {
		case []Region:
			out = append(out, v...)
		case []*Region:
			for _, r := range v {
				out = appendOne(out, r)
			}
		case []any:
			for _, item := range v {
				out = appendOne(out, item)
			}
		default:
			out = appendOne(out, v)
		}
	}
	return out
}

func appendOne(out []Region, v any) []Region {
	switch r := v.(type) {
	case Region:
		return append(out, r)
	case *Region:
		if r != nil {
			return append(out, *r)
		}
	}
	return out
}
