// Package mock builds synthetic model outputs for tests that run without
// ONNX Runtime.
package mock

import (
	"errors"
	"math"
	"sync"

	"github.com/MeKo-Tech/treerings/internal/onnx"
)

// ImageMap is a single-channel model output with NCHW shape [1,1,H,W].
type ImageMap struct {
	Data   []float32
	Width  int
	Height int
}

// Tensor returns the map as a [1,1,H,W] tensor.
func (m ImageMap) Tensor() onnx.Tensor {
	return onnx.Tensor{Data: m.Data, Shape: []int64{1, 1, int64(m.Height), int64(m.Width)}}
}

// NewUniformMap creates a map of size WxH filled with value clamped to [0,1].
func NewUniformMap(w, h int, value float32) ImageMap {
	if w <= 0 || h <= 0 {
		return ImageMap{}
	}
	data := make([]float32, w*h)
	for i := range data {
		data[i] = clamp01(value)
	}
	return ImageMap{Data: data, Width: w, Height: h}
}

// NewBlobMap creates a Gaussian blob with its peak at (cx, cy).
// sigma controls spread; higher values = wider blob.
func NewBlobMap(w, h int, cx, cy float64, peak float32, sigma float64) ImageMap {
	if w <= 0 || h <= 0 || sigma <= 0 {
		return ImageMap{}
	}
	data := make([]float32, w*h)
	inv2s2 := 1.0 / (2.0 * sigma * sigma)
	for y := range h {
		for x := range w {
			dx := float64(x) - cx
			dy := float64(y) - cy
			data[y*w+x] = clamp01(float32(math.Exp(-(dx*dx+dy*dy)*inv2s2)) * peak)
		}
	}
	return ImageMap{Data: data, Width: w, Height: h}
}

// NewCenteredBlobMap creates a Gaussian blob centered in the map.
func NewCenteredBlobMap(w, h int, peak float32, sigma float64) ImageMap {
	return NewBlobMap(w, h, float64(w-1)/2.0, float64(h-1)/2.0, peak, sigma)
}

// NewRingBoundaryMap draws concentric circular boundaries around (cx, cy)
// every spacing pixels. Pixels within width/2 of a boundary get hi, the rest
// lo.
func NewRingBoundaryMap(w, h int, cx, cy, spacing, width float64, hi, lo float32) ImageMap {
	if w <= 0 || h <= 0 || spacing <= 0 {
		return ImageMap{}
	}
	data := make([]float32, w*h)
	for y := range h {
		for x := range w {
			r := math.Hypot(float64(x)-cx, float64(y)-cy)
			k := math.Round(r / spacing)
			v := lo
			if k >= 1 && math.Abs(r-k*spacing) <= width/2 {
				v = hi
			}
			data[y*w+x] = clamp01(v)
		}
	}
	return ImageMap{Data: data, Width: w, Height: h}
}

// Model replays a fixed output and records the inputs it was given.
type Model struct {
	Output onnx.Tensor
	Err    error

	mu     sync.Mutex
	inputs []onnx.Tensor
	closed bool
}

// NewModel returns a model that always answers with m.
func NewModel(m ImageMap) *Model {
	return &Model{Output: m.Tensor()}
}

// Infer records t and returns the configured output.
func (m *Model) Infer(t onnx.Tensor) (onnx.Tensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return onnx.Tensor{}, errors.New("mock model closed")
	}
	m.inputs = append(m.inputs, t)
	if m.Err != nil {
		return onnx.Tensor{}, m.Err
	}
	return m.Output, nil
}

// Close marks the model closed.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Inputs returns the tensors passed to Infer so far.
func (m *Model) Inputs() []onnx.Tensor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]onnx.Tensor(nil), m.inputs...)
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
