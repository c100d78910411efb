package trunk

import (
	"math"

	clipper "github.com/ctessum/go.clipper"

	"github.com/MeKo-Tech/treerings/internal/utils"
)

// clipperScale keeps two decimals when converting to clipper's integer grid.
const clipperScale = 100.0

// offsetPolygon grows (delta > 0) or shrinks (delta < 0) a closed outline
// with round joins and returns the largest resulting ring. An outline that
// vanishes returns nil.
func offsetPolygon(pts []utils.Point, delta float64) []utils.Point {
	if delta == 0 || len(pts) < 3 {
		return pts
	}

	var path clipper.Path
	for _, p := range pts {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(p.X * clipperScale)),
			Y: clipper.CInt(math.Round(p.Y * clipperScale)),
		})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)
	solution := co.Execute(delta * clipperScale)

	var best []utils.Point
	var bestArea float64
	for _, sol := range solution {
		ring := make([]utils.Point, 0, len(sol))
		for _, pt := range sol {
			ring = append(ring, utils.Point{X: float64(pt.X) / clipperScale, Y: float64(pt.Y) / clipperScale})
		}
		if a := math.Abs(utils.SignedArea(ring)); a > bestArea {
			best, bestArea = ring, a
		}
	}
	return best
}
