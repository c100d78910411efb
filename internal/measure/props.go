// Package measure computes region properties over label masks in physical
// units and turns them into provenance-tagged table rows.
package measure

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrAnisotropic is returned when the perimeter is requested for unequal
// row and column spacing.
var ErrAnisotropic = errors.New("perimeter does not support anisotropic spacing")

// Props are the shape properties of one label. BBox is in pixel indices
// (min row, min col, max row, max col), max exclusive; everything else is
// scaled by the spacing.
type Props struct {
	Label            int32
	BBox             [4]int
	Area             float64
	Perimeter        float64
	AreaConvex       float64
	AxisMajorLength  float64
	AxisMinorLength  float64
	Eccentricity     float64
	FeretDiameterMax float64
	Orientation      float64
}

// RegionProps measures every non-zero label of m in ascending label order.
// spacing is the physical size of a pixel along rows and columns.
func RegionProps(m *region.LabelMask, spacing [2]float64) ([]Props, error) {
	if spacing[0] <= 0 || spacing[1] <= 0 {
		return nil, fmt.Errorf("invalid spacing %v", spacing)
	}
	if spacing[0] != spacing[1] {
		return nil, ErrAnisotropic
	}

	boxes := boundingBoxes(m)
	labels := m.Labels()
	out := make([]Props, 0, len(labels))
	for _, l := range labels {
		out = append(out, measureLabel(m, l, boxes[l], spacing))
	}
	return out, nil
}

// boundingBoxes returns (min row, min col, max row, max col), inclusive, for
// every label in one pass.
func boundingBoxes(m *region.LabelMask) map[int32][4]int {
	boxes := make(map[int32][4]int)
	for r := range m.Height {
		for c := range m.Width {
			l := m.At(r, c)
			if l == 0 {
				continue
			}
			b, ok := boxes[l]
			if !ok {
				boxes[l] = [4]int{r, c, r, c}
				continue
			}
			boxes[l] = [4]int{min(b[0], r), min(b[1], c), max(b[2], r), max(b[3], c)}
		}
	}
	return boxes
}

// crop is the binary image of one label inside its bounding box, padded by
// one pixel on every side.
type crop struct {
	h, w int
	px   []bool
}

func (c *crop) at(r, col int) bool {
	if r < 0 || col < 0 || r >= c.h || col >= c.w {
		return false
	}
	return c.px[r*c.w+col]
}

func measureLabel(m *region.LabelMask, label int32, box [4]int, spacing [2]float64) Props {
	minR, minC, maxR, maxC := box[0], box[1], box[2], box[3]

	cr := &crop{h: maxR - minR + 3, w: maxC - minC + 3}
	cr.px = make([]bool, cr.h*cr.w)
	rowCount := make([]float64, maxR-minR+1)
	colCount := make([]float64, maxC-minC+1)
	var n, sumR, sumC float64
	for r := minR; r <= maxR; r++ {
		for c := minC; c <= maxC; c++ {
			if m.At(r, c) == label {
				cr.px[(r-minR+1)*cr.w+(c-minC+1)] = true
				rowCount[r-minR]++
				colCount[c-minC]++
			}
		}
	}
	for i, k := range rowCount {
		n += k
		sumR += k * float64(minR+i)
	}
	for i, k := range colCount {
		sumC += k * float64(minC+i)
	}

	sy, sx := spacing[0], spacing[1]
	p := Props{
		Label: label,
		BBox:  [4]int{minR, minC, maxR + 1, maxC + 1},
		Area:  n * sy * sx,
	}
	p.Perimeter = perimeter(cr) * sy

	// Central moments in physical coordinates, accumulated per axis; mu00
	// stays the pixel count.
	rc, cc := sumR/n*sy, sumC/n*sx
	var mu20, mu02, mu11 float64
	for i, k := range rowCount {
		dr := float64(minR+i)*sy - rc
		mu20 += k * dr * dr
	}
	for i, k := range colCount {
		dc := float64(minC+i)*sx - cc
		mu02 += k * dc * dc
	}
	for r := minR; r <= maxR; r++ {
		var rowDc float64
		for c := minC; c <= maxC; c++ {
			if cr.px[(r-minR+1)*cr.w+(c-minC+1)] {
				rowDc += float64(c)*sx - cc
			}
		}
		mu11 += (float64(r)*sy - rc) * rowDc
	}
	a, b, d := mu02/n, -mu11/n, mu20/n
	l1, l2 := eigenvalues(a, b, d)
	p.AxisMajorLength = 4 * math.Sqrt(l1)
	p.AxisMinorLength = 4 * math.Sqrt(l2)
	if l1 != 0 {
		p.Eccentricity = math.Sqrt(math.Max(0, 1-l2/l1))
	}
	p.Orientation = orientation(a, b, d)

	hull := convexRows(cr)
	p.AreaConvex = float64(hull.count()) * sy * sx
	p.FeretDiameterMax = feretMax(hull, cr, sy, sx)
	return p
}

// eigenvalues of the symmetric tensor [[a b] [b d]], clipped at zero and
// sorted descending.
func eigenvalues(a, b, d float64) (float64, float64) {
	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{a, b, b, d}), false) {
		return 0, 0
	}
	vals := eig.Values(nil) // ascending
	return math.Max(vals[1], 0), math.Max(vals[0], 0)
}

// orientation is the angle between the row axis and the major axis, in
// radians in [-pi/2, pi/2].
func orientation(a, b, d float64) float64 {
	if a-d == 0 {
		if b < 0 {
			return math.Pi / 4
		}
		return -math.Pi / 4
	}
	return 0.5 * math.Atan2(-2*b, d-a)
}

var perimeterWeights = func() [50]float64 {
	var w [50]float64
	for _, i := range []int{5, 7, 15, 17, 25, 27} {
		w[i] = 1
	}
	w[21], w[33] = math.Sqrt2, math.Sqrt2
	w[13], w[23] = (1+math.Sqrt2)/2, (1+math.Sqrt2)/2
	return w
}()

// perimeter estimates the contour length in pixels from the 4-connected
// border of the crop, weighting each border pixel by its neighbourhood code.
func perimeter(cr *crop) float64 {
	border := make([]bool, len(cr.px))
	for r := range cr.h {
		for c := range cr.w {
			if !cr.at(r, c) {
				continue
			}
			eroded := cr.at(r-1, c) && cr.at(r+1, c) && cr.at(r, c-1) && cr.at(r, c+1)
			border[r*cr.w+c] = !eroded
		}
	}
	isBorder := func(r, c int) int {
		if r < 0 || c < 0 || r >= cr.h || c >= cr.w || !border[r*cr.w+c] {
			return 0
		}
		return 1
	}

	var total float64
	for r := range cr.h {
		for c := range cr.w {
			code := isBorder(r, c) +
				2*(isBorder(r-1, c)+isBorder(r+1, c)+isBorder(r, c-1)+isBorder(r, c+1)) +
				10*(isBorder(r-1, c-1)+isBorder(r-1, c+1)+isBorder(r+1, c-1)+isBorder(r+1, c+1))
			total += perimeterWeights[code]
		}
	}
	return total
}

// hullRows is the filled convex hull as one column interval per crop row;
// lo > hi marks an empty row.
type hullRows struct {
	lo, hi []int
}

func (h hullRows) count() int {
	n := 0
	for i := range h.lo {
		if h.hi[i] >= h.lo[i] {
			n += h.hi[i] - h.lo[i] + 1
		}
	}
	return n
}

func (h hullRows) contains(r, c int) bool {
	return r >= 0 && r < len(h.lo) && c >= h.lo[r] && c <= h.hi[r]
}

// convexRows fills the convex hull of the border pixels' edge midpoints,
// keeping pixels whose centre lies inside or on the hull.
func convexRows(cr *crop) hullRows {
	var pts []utils.Point
	for r := range cr.h {
		for c := range cr.w {
			if !cr.at(r, c) {
				continue
			}
			if cr.at(r-1, c) && cr.at(r+1, c) && cr.at(r, c-1) && cr.at(r, c+1) {
				continue
			}
			x, y := float64(c), float64(r)
			pts = append(pts,
				utils.Point{X: x, Y: y - 0.5}, utils.Point{X: x, Y: y + 0.5},
				utils.Point{X: x - 0.5, Y: y}, utils.Point{X: x + 0.5, Y: y})
		}
	}
	hull := utils.ConvexHull(pts)

	rows := hullRows{lo: make([]int, cr.h), hi: make([]int, cr.h)}
	for r := range cr.h {
		rows.lo[r], rows.hi[r] = 0, -1
		xmin, xmax, ok := hullSpan(hull, float64(r))
		if !ok {
			continue
		}
		const eps = 1e-9
		rows.lo[r] = max(0, int(math.Ceil(xmin-eps)))
		rows.hi[r] = min(cr.w-1, int(math.Floor(xmax+eps)))
	}
	return rows
}

// hullSpan intersects the horizontal line at y with a convex polygon.
func hullSpan(hull []utils.Point, y float64) (float64, float64, bool) {
	if len(hull) == 0 {
		return 0, 0, false
	}
	xmin, xmax := math.Inf(1), math.Inf(-1)
	n := len(hull)
	for i := range n {
		a, b := hull[i], hull[(i+1)%n]
		if n == 1 {
			b = a
		}
		lo, hi := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
		if y < lo || y > hi {
			continue
		}
		if a.Y == b.Y {
			xmin = math.Min(xmin, math.Min(a.X, b.X))
			xmax = math.Max(xmax, math.Max(a.X, b.X))
			continue
		}
		x := a.X + (y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
	}
	return xmin, xmax, xmin <= xmax
}

// feretMax is the largest distance between points of the convex image's
// outline, sampled at the midpoints between inside and outside pixels.
func feretMax(h hullRows, cr *crop, sy, sx float64) float64 {
	var pts []utils.Point
	add := func(r, c float64) {
		pts = append(pts, utils.Point{X: c * sx, Y: r * sy})
	}
	for r := range cr.h {
		if h.hi[r] < h.lo[r] {
			continue
		}
		fr := float64(r)
		add(fr, float64(h.lo[r])-0.5)
		add(fr, float64(h.hi[r])+0.5)
		for c := h.lo[r]; c <= h.hi[r]; c++ {
			if !h.contains(r-1, c) {
				add(fr-0.5, float64(c))
			}
			if !h.contains(r+1, c) {
				add(fr+0.5, float64(c))
			}
		}
	}
	return utils.MaxPairwiseDistance(pts)
}
