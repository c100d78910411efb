package trunk

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/treerings/internal/raster"
	"gonum.org/v1/gonum/mat"
)

// ErrStainMatrix is returned for stain vectors that do not form an
// invertible 3x3 matrix.
var ErrStainMatrix = errors.New("invalid stain vectors")

// stainMatrixInverse normalizes the three stain vectors (rows) and inverts
// the matrix, so that concentrations = OD * inverse.
func stainMatrixInverse(vectors []float64) (*mat.Dense, error) {
	if len(vectors) != 9 {
		return nil, fmt.Errorf("%w: need 9 values, got %d", ErrStainMatrix, len(vectors))
	}
	m := mat.NewDense(3, 3, nil)
	for r := range 3 {
		row := vectors[r*3 : r*3+3]
		n := math.Sqrt(row[0]*row[0] + row[1]*row[1] + row[2]*row[2])
		if n == 0 {
			return nil, fmt.Errorf("%w: stain %d is zero", ErrStainMatrix, r+1)
		}
		for c := range 3 {
			m.Set(r, c, row[c]/n)
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStainMatrix, err)
	}
	return &inv, nil
}

// opticalDensity converts an 8-bit intensity to optical density.
func opticalDensity(v float32) float64 {
	return -math.Log10((float64(v) + 1) / 256)
}

// stainPlane returns the first-stain concentration of every pixel. Single
// channel images use inverted intensity instead.
func stainPlane(img *raster.Image, vectors []float64) ([]float64, error) {
	if img.IsGray() {
		g := img.Gray()
		out := make([]float64, len(g))
		for i, v := range g {
			out[i] = 255 - float64(v)
		}
		return out, nil
	}

	inv, err := stainMatrixInverse(vectors)
	if err != nil {
		return nil, err
	}
	k0, k1, k2 := inv.At(0, 0), inv.At(1, 0), inv.At(2, 0)

	// OD lookup per 8-bit level.
	var lut [256]float64
	for i := range lut {
		lut[i] = opticalDensity(float32(i))
	}
	level := func(v float32) float64 {
		return lut[min(255, max(0, int(v+0.5)))]
	}

	r, g, b := img.RGB()
	out := make([]float64, len(r))
	for i := range r {
		out[i] = level(r[i])*k0 + level(g[i])*k1 + level(b[i])*k2
	}
	return out, nil
}

// toGray scales a plane into 8 bits, mapping 0 and below to black and the
// plane maximum to white.
func toGray(plane []float64, w, h int) *image.Gray {
	var maxV float64
	for _, v := range plane {
		maxV = math.Max(maxV, v)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	if maxV <= 0 {
		return img
	}
	for i, v := range plane {
		img.Pix[i] = uint8(math.Round(math.Max(0, v) / maxV * 255))
	}
	return img
}
