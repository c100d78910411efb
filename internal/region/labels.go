package region

import "slices"

// LabelMask is a row-major raster of integer labels; 0 is background.
type LabelMask struct {
	Height int
	Width  int
	Data   []int32
}

// NewLabelMask returns an all-background mask.
func NewLabelMask(h, w int) *LabelMask {
	return &LabelMask{Height: h, Width: w, Data: make([]int32, h*w)}
}

// At returns the label at (row, col).
func (m *LabelMask) At(row, col int) int32 { return m.Data[row*m.Width+col] }

// Set assigns label v at (row, col).
func (m *LabelMask) Set(row, col int, v int32) { m.Data[row*m.Width+col] = v }

// Labels returns the distinct non-zero labels in ascending order.
func (m *LabelMask) Labels() []int32 {
	seen := make(map[int32]struct{})
	for _, v := range m.Data {
		if v != 0 {
			seen[v] = struct{}{}
		}
	}
	out := make([]int32, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Count returns the number of pixels carrying label v.
func (m *LabelMask) Count(v int32) int {
	n := 0
	for _, x := range m.Data {
		if x == v {
			n++
		}
	}
	return n
}

// Resized returns a copy cropped or zero-padded to h x w, anchored at the
// top-left corner.
func (m *LabelMask) Resized(h, w int) *LabelMask {
	if h == m.Height && w == m.Width {
		return &LabelMask{Height: h, Width: w, Data: slices.Clone(m.Data)}
	}
	out := NewLabelMask(h, w)
	for r := range min(h, m.Height) {
		copy(out.Data[r*w:r*w+min(w, m.Width)], m.Data[r*m.Width:r*m.Width+min(w, m.Width)])
	}
	return out
}
