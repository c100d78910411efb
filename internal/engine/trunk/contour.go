package trunk

import "github.com/MeKo-Tech/treerings/internal/utils"

// Moore neighbourhood in clockwise order (image coordinates): E, SE, S, SW,
// W, NW, N, NE.
var (
	mooreDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	mooreDY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// traceContour follows the outer boundary of the single component in mask
// with Moore-neighbour tracing. Points are
// pixel indices; collinear runs are collapsed.
func traceContour(mask []bool, w, h int) []utils.Point {
	isSet := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask[y*w+x]
	}

	// The first set pixel in raster order has background on its left.
	sx, sy := -1, -1
	for i, set := range mask {
		if set {
			sx, sy = i%w, i/w
			break
		}
	}
	if sx < 0 {
		return nil
	}

	pts := make([]utils.Point, 0, 64)
	add := func(x, y int) {
		p := utils.Point{X: float64(x), Y: float64(y)}
		if n := len(pts); n > 0 && pts[n-1] == p {
			return
		}
		if n := len(pts); n >= 2 {
			a, b := pts[n-2], pts[n-1]
			if (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	add(sx, sy)

	// Stop when the trace leaves the start pixel the same way it did first.
	cx, cy, bx, by := sx, sy, sx-1, sy
	fx, fy := -1, -1
	for step := 0; step < 4*w*h+8; step++ {
		nx, ny, nbx, nby, found := nextBoundary(isSet, cx, cy, bx, by)
		if !found {
			break // isolated pixel
		}
		if fx < 0 {
			fx, fy = nx, ny
		} else if cx == sx && cy == sy && nx == fx && ny == fy {
			break
		}
		cx, cy, bx, by = nx, ny, nbx, nby
		add(cx, cy)
	}

	if n := len(pts); n >= 2 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}

func mooreIndex(dx, dy int) int {
	for i := range 8 {
		if mooreDX[i] == dx && mooreDY[i] == dy {
			return i
		}
	}
	return 0
}

// nextBoundary scans the neighbours of (cx, cy) clockwise, starting after
// the backtrack pixel (bx, by).
func nextBoundary(isSet func(int, int) bool, cx, cy, bx, by int) (int, int, int, int, bool) {
	start := (mooreIndex(bx-cx, by-cy) + 1) % 8
	for k := range 8 {
		i := (start + k) % 8
		tx, ty := cx+mooreDX[i], cy+mooreDY[i]
		if isSet(tx, ty) {
			return tx, ty, bx, by, true
		}
		bx, by = tx, ty
	}
	return 0, 0, bx, by, false
}
