//go:build gocv

// Package cvtrunk runs the trunk recipe with OpenCV primitives. It is only
// built with the gocv tag since it needs a local OpenCV installation.
package cvtrunk

import (
	"context"
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/treerings/internal/engine/trunk"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

// Name identifies the engine in configuration and errors.
const Name = "cvtrunk"

// New returns a stopped engine that answers the trunk command.
func New() *trunk.Engine {
	return trunk.NewWith(Name, Segment)
}

// Segment mirrors trunk.Segment: stain plane, area downscale, Gaussian blur,
// threshold, elliptic closing and opening, largest external contour.
func Segment(ctx context.Context, img *raster.Image, p trunk.Params, vectors []float64) ([]utils.Point, error) {
	h, w := img.Extent()
	if h == 0 || w == 0 {
		return nil, nil
	}

	gray, err := trunk.StainImage(img, vectors)
	if err != nil {
		return nil, err
	}
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, gray.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap stain plane: %w", err)
	}
	defer src.Close()

	sw, sh := max(1, w/p.Scale), max(1, h/p.Scale)
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(src, &small, image.Point{X: sw, Y: sh}, 0, 0, gocv.InterpolationArea)

	if p.Sigma > 0 {
		gocv.GaussianBlur(small, &small, image.Point{}, p.Sigma, p.Sigma, gocv.BorderDefault)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	switch strings.ToLower(p.Thresholding) {
	case "otsu":
		gocv.Threshold(small, &mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	case "mean", "":
		gocv.Threshold(small, &mask, float32(small.Mean().Val1), 255, gocv.ThresholdBinary)
	default:
		return nil, fmt.Errorf("%w: %q", trunk.ErrUnsupportedThreshold, p.Thresholding)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	morph(&mask, gocv.MorphClose, p.Closing)
	morph(&mask, gocv.MorphOpen, p.Opening)

	// External contours ignore holes, so the largest one is the filled
	// trunk.
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best, bestArea := -1, float64(p.MinSize)
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a >= bestArea {
			best, bestArea = i, a
		}
	}
	if best < 0 {
		return nil, nil
	}

	var contour []utils.Point
	for _, pt := range contours.At(best).ToPoints() {
		contour = append(contour, utils.Point{X: float64(pt.X), Y: float64(pt.Y)})
	}
	return trunk.Outline(contour, w, h, sw, sh, p), nil
}

func morph(m *gocv.Mat, op gocv.MorphType, r int) {
	if r <= 0 {
		return
	}
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 2*r + 1, Y: 2*r + 1})
	defer kernel.Close()
	gocv.MorphologyEx(*m, m, op, kernel)
}
