package trunk

// largestComponent keeps the biggest 4-connected component of mask if it
// has at least minSize pixels; otherwise it returns nil.
func largestComponent(mask []bool, w, h, minSize int) []bool {
	labels := make([]int, w*h)
	bestLabel, bestSize := 0, 0
	label := 0

	queue := make([]int, 0, 64)
	for start, set := range mask {
		if !set || labels[start] != 0 {
			continue
		}
		label++
		labels[start] = label
		queue = append(queue[:0], start)
		size := 0
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			size++
			x, y := i%w, i/w
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && labels[ni] == 0 {
					labels[ni] = label
					queue = append(queue, ni)
				}
			}
		}
		if size > bestSize {
			bestLabel, bestSize = label, size
		}
	}

	if bestSize == 0 || bestSize < minSize {
		return nil
	}
	out := make([]bool, len(mask))
	for i, l := range labels {
		out[i] = l == bestLabel
	}
	return out
}
