// Package onnx wraps ONNX Runtime sessions for the ring and pith models.
package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor in row-major layout, NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [N, C, H, W]
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := c * h * w
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	shape := []int64{1, int64(c), int64(h), int64(w)}
	return Tensor{Data: data, Shape: shape}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// Plane returns channel c of image n as an H x W slice sharing t's data.
func (t Tensor) Plane(n, c int) ([]float32, int, int, error) {
	if err := VerifyImageTensor(t); err != nil {
		return nil, 0, 0, err
	}
	if n < 0 || int64(n) >= t.Shape[0] || c < 0 || int64(c) >= t.Shape[1] {
		return nil, 0, 0, fmt.Errorf("plane (%d, %d) out of range for shape %v", n, c, t.Shape)
	}
	h, w := int(t.Shape[2]), int(t.Shape[3])
	off := (n*int(t.Shape[1]) + c) * h * w
	return t.Data[off : off+h*w], h, w, nil
}

// TensorStats computes simple statistics for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	var minVal, maxVal, mean float32
	minVal, maxVal = data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += float64(v)
	}
	mean = float32(sum / float64(len(data)))
	return minVal, maxVal, mean
}

// VerifyImageTensor checks data length matches the provided NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	expected := int(n * c * h * w)
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}
