package utils

import (
	"cmp"
	"math"
	"slices"
)

// ResamplePolygon walks the closed outline and emits vertices every spacing
// units of arc length, starting at the first vertex. Outlines shorter than
// three spacings are returned unchanged.
func ResamplePolygon(pts []Point, spacing float64) []Point {
	if len(pts) < 3 || spacing <= 0 {
		return append([]Point(nil), pts...)
	}
	perim := PolygonPerimeter(pts)
	if perim < 3*spacing {
		return append([]Point(nil), pts...)
	}

	n := int(math.Round(perim / spacing))
	step := perim / float64(n)
	out := make([]Point, 0, n)
	out = append(out, pts[0])

	next := step
	walked := 0.0
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		seg := math.Hypot(b.X-a.X, b.Y-a.Y)
		for seg > 0 && next <= walked+seg && len(out) < n {
			t := (next - walked) / seg
			out = append(out, Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)})
			next += step
		}
		walked += seg
	}
	return out
}

// PolygonPerimeter returns the length of the closed outline.
func PolygonPerimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var sum float64
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		sum += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return sum
}

// SignedArea returns the shoelace area of the polygon. The result is positive
// for counter-clockwise winding in a Y-up frame, which is clockwise on screen.
func SignedArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in CCW order without
// duplicating the first point at the end.
func ConvexHull(pts []Point) []Point {
	if len(pts) <= 1 {
		return append([]Point(nil), pts...)
	}
	p := slices.Clone(pts)
	slices.SortFunc(p, func(a, b Point) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	p = slices.Compact(p)
	if len(p) <= 1 {
		return p
	}
	lower := buildLowerHull(p)
	upper := buildUpperHull(p)
	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func buildLowerHull(p []Point) []Point {
	lower := make([]Point, 0, len(p))
	for _, pt := range p {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	return lower
}

func buildUpperHull(p []Point) []Point {
	upper := make([]Point, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		pt := p[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}
	return upper
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MaxPairwiseDistance returns the largest distance between any two points.
// The search runs over the convex hull, which holds every diameter endpoint.
func MaxPairwiseDistance(pts []Point) float64 {
	hull := ConvexHull(pts)
	var best float64
	for i := range hull {
		for j := i + 1; j < len(hull); j++ {
			best = math.Max(best, math.Hypot(hull[j].X-hull[i].X, hull[j].Y-hull[i].Y))
		}
	}
	return best
}
