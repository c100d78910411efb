package testutil

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TrunkScene describes a synthetic cross-section: an elliptical trunk with an
// optional bark band and concentric ring lines on a plain background.
type TrunkScene struct {
	Width, Height    int
	CenterX, CenterY float64
	RadiusX, RadiusY float64
	BarkWidth        float64
	Rings            int
	Background       color.Color
	Wood             color.Color
	Bark             color.Color
	RingLine         color.Color
}

// DefaultTrunkScene returns a 240x200 scene with a brown trunk on white.
func DefaultTrunkScene() TrunkScene {
	return TrunkScene{
		Width:      240,
		Height:     200,
		CenterX:    120,
		CenterY:    100,
		RadiusX:    80,
		RadiusY:    60,
		Background: color.White,
		Wood:       color.RGBA{R: 150, G: 105, B: 60, A: 255},
		Bark:       color.RGBA{R: 70, G: 50, B: 40, A: 255},
		RingLine:   color.RGBA{R: 90, G: 60, B: 30, A: 255},
	}
}

// GenerateTrunk renders the scene. Pixel (x, y) is sampled at its centre.
func GenerateTrunk(s TrunkScene) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := range s.Height {
		for x := range s.Width {
			dx := (float64(x) + 0.5 - s.CenterX) / s.RadiusX
			dy := (float64(y) + 0.5 - s.CenterY) / s.RadiusY
			d := math.Hypot(dx, dy)
			var c color.Color
			switch {
			case d <= 1 && s.Rings > 0 && onRing(d, s):
				c = s.RingLine
			case d <= 1:
				c = s.Wood
			case s.BarkWidth > 0 && d <= 1+s.BarkWidth/math.Min(s.RadiusX, s.RadiusY):
				c = s.Bark
			default:
				c = s.Background
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func onRing(d float64, s TrunkScene) bool {
	step := 1 / float64(s.Rings+1)
	px := 1 / math.Min(s.RadiusX, s.RadiusY)
	for k := 1; k <= s.Rings; k++ {
		if math.Abs(d-float64(k)*step) < px {
			return true
		}
	}
	return false
}

// GenerateSquare returns an h x w gray image with a side x side square of
// value fg whose top-left pixel is (x0, y0); the rest is bg.
func GenerateSquare(h, w, x0, y0, side int, fg, bg uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := bg
			if x >= x0 && x < x0+side && y >= y0 && y < y0+side {
				v = fg
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// StainColor returns the RGB colour produced by concentration c of a stain
// with optical density vector v, using OD = -log10((I+1)/256).
func StainColor(v [3]float64, c float64) color.RGBA {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	ch := func(i int) uint8 {
		i8 := 256*math.Pow(10, -c*v[i]/n) - 1
		return uint8(math.Round(math.Max(0, math.Min(255, i8))))
	}
	return color.RGBA{R: ch(0), G: ch(1), B: ch(2), A: 255}
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// CompareImages reports whether two images differ by at most tolerance,
// measured as the mean normalized RGBA distance.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds := img1.Bounds()
	if bounds != img2.Bounds() {
		return false
	}

	var totalDiff, pixelCount float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (totalDiff/pixelCount)/maxDiff <= tolerance
}
