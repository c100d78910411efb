package trunk

// Binary morphology on row-major masks with disk structuring elements.
// Pixels outside the image count as foreground for erosion and as
// background for dilation, so objects touching the border are not eroded
// from it.

// diskSpans returns, for each row offset dy in [-r, r], the half width of
// the disk of radius r.
func diskSpans(r int) []int {
	spans := make([]int, 2*r+1)
	for dy := -r; dy <= r; dy++ {
		dx := 0
		for (dx+1)*(dx+1)+dy*dy <= r*r {
			dx++
		}
		spans[dy+r] = dx
	}
	return spans
}

// rowPrefix returns per-row prefix counts of set pixels.
func rowPrefix(mask []bool, w, h int) []int {
	prefix := make([]int, h*(w+1))
	for y := range h {
		base := y * (w + 1)
		for x := range w {
			prefix[base+x+1] = prefix[base+x]
			if mask[y*w+x] {
				prefix[base+x+1]++
			}
		}
	}
	return prefix
}

func dilate(mask []bool, w, h, r int) []bool {
	if r <= 0 {
		return append([]bool(nil), mask...)
	}
	spans := diskSpans(r)
	prefix := rowPrefix(mask, w, h)
	out := make([]bool, len(mask))
	for y := range h {
		for x := range w {
			for dy := -r; dy <= r && !out[y*w+x]; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				lo, hi := max(0, x-spans[dy+r]), min(w, x+spans[dy+r]+1)
				base := yy * (w + 1)
				if prefix[base+hi]-prefix[base+lo] > 0 {
					out[y*w+x] = true
				}
			}
		}
	}
	return out
}

func erode(mask []bool, w, h, r int) []bool {
	if r <= 0 {
		return append([]bool(nil), mask...)
	}
	spans := diskSpans(r)
	prefix := rowPrefix(mask, w, h)
	out := make([]bool, len(mask))
	for y := range h {
		for x := range w {
			if !mask[y*w+x] {
				continue
			}
			keep := true
			for dy := -r; dy <= r && keep; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				lo, hi := max(0, x-spans[dy+r]), min(w, x+spans[dy+r]+1)
				base := yy * (w + 1)
				keep = prefix[base+hi]-prefix[base+lo] == hi-lo
			}
			out[y*w+x] = keep
		}
	}
	return out
}

func opening(mask []bool, w, h, r int) []bool {
	return dilate(erode(mask, w, h, r), w, h, r)
}

func closing(mask []bool, w, h, r int) []bool {
	return erode(dilate(mask, w, h, r), w, h, r)
}

// fillHoles sets every background pixel that is not 4-connected to the
// image border.
func fillHoles(mask []bool, w, h int) []bool {
	outside := make([]bool, len(mask))
	queue := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		i := y*w + x
		if !mask[i] && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := range w {
		push(x, 0)
		push(x, h-1)
	}
	for y := range h {
		push(0, y)
		push(w-1, y)
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
	out := make([]bool, len(mask))
	for i := range out {
		out[i] = !outside[i]
	}
	return out
}
