package measure

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/treerings/internal/rasterize"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/table"
)

// DefaultObjectType tags trunk measurements.
const DefaultObjectType = "trunk"

// Column names of a measurement row, in output order.
const (
	ColLabel            = "label"
	ColPerimeter        = "perimeter"
	ColArea             = "area"
	ColAreaConvex       = "area_convex"
	ColAxisMajorLength  = "axis_major_length"
	ColAxisMinorLength  = "axis_minor_length"
	ColEccentricity     = "eccentricity"
	ColFeretDiameterMax = "feret_diameter_max"
	ColOrientation      = "orientation"
	ColBaseUnit         = "base unit"
	ColImage            = "image"
	ColPath             = "path"
	ColObjectType       = "object_type"
)

// ErrNoRegions is returned when a mask holds no labelled pixel.
var ErrNoRegions = errors.New("no regions found")

// Error reports a failed measurement.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("measurement error during %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Provenance identifies where a row came from. Path is written only when
// HasPath is set.
type Provenance struct {
	BaseUnit   string
	Image      string
	Path       string
	HasPath    bool
	ObjectType string
}

// ProvenanceFor derives the provenance of r. The image name comes from the
// parent link when present and from the region otherwise; the path column
// exists only for regions with a parent.
func ProvenanceFor(r region.Region, objectType string) Provenance {
	if objectType == "" {
		objectType = DefaultObjectType
	}
	p := Provenance{BaseUnit: r.Units[0], Image: r.Name, ObjectType: objectType}
	if r.Parent != nil {
		p.Image = r.Parent.Name
		p.Path = filepath.Dir(r.Parent.Path)
		p.HasPath = true
	}
	return p
}

// Measure computes one row per label of m.
func Measure(m *region.LabelMask, spacing [2]float64, prov Provenance) ([]*table.Row, error) {
	props, err := RegionProps(m, spacing)
	if err != nil {
		return nil, &Error{Op: "regionprops", Err: err}
	}
	if len(props) == 0 {
		return nil, &Error{Op: "regionprops", Err: ErrNoRegions}
	}

	rows := make([]*table.Row, 0, len(props))
	for _, p := range props {
		rows = append(rows, toRow(p, prov))
	}
	return rows, nil
}

func toRow(p Props, prov Provenance) *table.Row {
	r := table.NewRow().
		Set(ColLabel, int(p.Label)).
		Set("bbox-0", p.BBox[0]).
		Set("bbox-1", p.BBox[1]).
		Set("bbox-2", p.BBox[2]).
		Set("bbox-3", p.BBox[3]).
		Set(ColPerimeter, p.Perimeter).
		Set(ColArea, p.Area).
		Set(ColAreaConvex, p.AreaConvex).
		Set(ColAxisMajorLength, p.AxisMajorLength).
		Set(ColAxisMinorLength, p.AxisMinorLength).
		Set(ColEccentricity, p.Eccentricity).
		Set(ColFeretDiameterMax, p.FeretDiameterMax).
		Set(ColOrientation, p.Orientation).
		Set(ColBaseUnit, prov.BaseUnit).
		Set(ColImage, prov.Image)
	if prov.HasPath {
		r.Set(ColPath, prov.Path)
	}
	return r.Set(ColObjectType, prov.ObjectType)
}

// MeasureRegion rasterizes r into its parent's frame and measures it with
// the region's scale.
func MeasureRegion(r region.Region, objectType string) ([]*table.Row, error) {
	m, err := rasterize.ToLabelMask(r)
	if err != nil {
		return nil, &Error{Op: "rasterize", Err: err}
	}
	return Measure(m, r.Scale, ProvenanceFor(r, objectType))
}

// AddToTable appends rows to t one at a time.
func AddToTable(t *table.Table, rows []*table.Row) {
	for _, r := range rows {
		t.Add(r)
	}
}
