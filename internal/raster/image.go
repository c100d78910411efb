// Package raster holds the in-memory image model shared by the pipeline:
// pixel data plus calibration and provenance.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/treerings/internal/calibration"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultUnit is the unit of an uncalibrated axis.
const DefaultUnit = calibration.DefaultUnit

// LoadError wraps failures to open or decode an image file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load image %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Image is a 2D raster with per-axis physical scale. Axis 0 is rows (y),
// axis 1 is columns (x).
type Image struct {
	Pixels image.Image
	Scale  [2]float64
	Units  [2]string
	Path   string
	Name   string
}

// New wraps pixels as an uncalibrated image.
func New(pixels image.Image, name string) *Image {
	return &Image{
		Pixels: pixels,
		Scale:  [2]float64{1, 1},
		Units:  [2]string{DefaultUnit, DefaultUnit},
		Name:   name,
	}
}

// Load opens and decodes path. Supported: TIFF, PNG, JPEG, BMP.
func Load(path string) (*Image, error) {
	if path == "" {
		return nil, &LoadError{Path: path, Err: errors.New("empty path")}
	}
	f, err := os.Open(path) //nolint:gosec // G304: user-selected image path
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	out := New(img, filepath.Base(path))
	out.Path = path
	return out, nil
}

// Stem returns the file name without its extension.
func (im *Image) Stem() string {
	return strings.TrimSuffix(im.Name, filepath.Ext(im.Name))
}

// Height returns the number of rows.
func (im *Image) Height() int { return im.Pixels.Bounds().Dy() }

// Width returns the number of columns.
func (im *Image) Width() int { return im.Pixels.Bounds().Dx() }

// Extent returns (rows, columns).
func (im *Image) Extent() (int, int) { return im.Height(), im.Width() }

// Calibrate applies an isotropic pixel size and unit to both axes.
func (im *Image) Calibrate(c calibration.Calibration) {
	im.Scale = [2]float64{c.PixelSize, c.PixelSize}
	im.Units = [2]string{c.Unit, c.Unit}
}

// IsGray reports whether the pixel data carries a single channel.
func (im *Image) IsGray() bool {
	switch im.Pixels.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// Gray returns the luminance plane in row-major order, scaled to [0, 255].
func (im *Image) Gray() []float32 {
	b := im.Pixels.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, w*h)
	for y := range h {
		for x := range w {
			g := color.Gray16Model.Convert(im.Pixels.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			out[y*w+x] = float32(g.Y) / 257
		}
	}
	return out
}

// RGB returns the three colour planes in row-major order, scaled to [0, 255].
func (im *Image) RGB() ([]float32, []float32, []float32) {
	bounds := im.Pixels.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	r := make([]float32, w*h)
	g := make([]float32, w*h)
	bl := make([]float32, w*h)
	for y := range h {
		for x := range w {
			cr, cg, cb, _ := im.Pixels.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			r[i] = float32(cr) / 257
			g[i] = float32(cg) / 257
			bl[i] = float32(cb) / 257
		}
	}
	return r, g, bl
}
