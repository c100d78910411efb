package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/treerings/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ResizeExact stretches img to w x h with bilinear sampling.
func ResizeExact(img image.Image, w, h int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if w <= 0 || h <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid target size %dx%d", w, h)}
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, w, h, imaging.Linear), nil
}

// NormalizeImage converts img to a [1, 3, H, W] float32 tensor with values
// in [0, 1]. Alpha is dropped.
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	return normalize(img, func(n int) []float32 { return make([]float32, n) })
}

// NormalizeImagePooled is NormalizeImage with the output taken from the
// buffer pool. The caller returns it via mempool.PutFloat32.
func NormalizeImagePooled(img image.Image) ([]float32, int, int, error) {
	return normalize(img, mempool.GetFloat32)
}

func normalize(img image.Image, alloc func(int) []float32) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	plane := width * height
	data := alloc(3 * plane)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			idx := y*width + x
			data[idx] = float32(row[4*x]) / 255.0
			data[plane+idx] = float32(row[4*x+1]) / 255.0
			data[2*plane+idx] = float32(row[4*x+2]) / 255.0
		}
	}
	return data, width, height, nil
}
