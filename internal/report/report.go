// Package report renders segmentation overlays and bundles them into a PDF.
package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Colours per object type; anything else is drawn in white.
var palette = map[string]color.RGBA{
	"trunk": {R: 255, G: 64, B: 64, A: 255},
	"bark":  {R: 255, G: 200, B: 0, A: 255},
	"ring":  {R: 0, G: 200, B: 255, A: 255},
}

var (
	defaultColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	captionBG    = color.RGBA{A: 160}
)

// Overlay describes what is drawn on top of the image.
type Overlay struct {
	Regions []region.Region
	Pith    *utils.Point
	Caption string
}

// RenderOverlay draws outlines, label boundaries, the pith and a caption on
// an RGBA copy of img.
func RenderOverlay(img *raster.Image, o Overlay) *image.RGBA {
	b := img.Pixels.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img.Pixels, b.Min, draw.Src)

	thickness := max(1, min(b.Dx(), b.Dy())/256)
	for _, r := range o.Regions {
		col, ok := palette[r.ObjectType]
		if !ok {
			col = defaultColor
		}
		if r.IsPolygon() {
			utils.DrawPolygon(dst, r.Polygon, col, thickness)
			continue
		}
		drawBoundaries(dst, r.Labels, col)
	}
	if o.Pith != nil {
		utils.DrawCross(dst, *o.Pith, palette["ring"], 4*thickness+2, thickness)
	}
	if o.Caption != "" {
		drawCaption(dst, o.Caption)
	}
	return dst
}

// drawBoundaries colours every labelled pixel with a 4-neighbour of a
// different label.
func drawBoundaries(dst *image.RGBA, m *region.LabelMask, col color.RGBA) {
	if m == nil {
		return
	}
	h, w := min(m.Height, dst.Bounds().Dy()), min(m.Width, dst.Bounds().Dx())
	for y := range h {
		for x := range w {
			v := m.At(y, x)
			if v == 0 {
				continue
			}
			if (y > 0 && m.At(y-1, x) != v) || (y < m.Height-1 && m.At(y+1, x) != v) ||
				(x > 0 && m.At(y, x-1) != v) || (x < m.Width-1 && m.At(y, x+1) != v) {
				dst.SetRGBA(x, y, col)
			}
		}
	}
}

func drawCaption(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	height := face.Metrics().Height.Ceil() + 4
	band := image.Rect(0, 0, dst.Bounds().Dx(), min(height, dst.Bounds().Dy()))
	draw.Draw(dst, band, &image.Uniform{C: captionBG}, image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(3, face.Metrics().Ascent.Ceil()+2),
	}
	drawer.DrawString(text)
}

// SaveOverlay writes img to path; the format follows the extension.
func SaveOverlay(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save overlay %s: %w", path, err)
	}
	return nil
}

// BuildPDF writes one page per image into out, in the given order.
func BuildPDF(images []string, out string) error {
	if len(images) == 0 {
		return errors.New("no images for report")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := api.ImportImagesFile(images, out, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("build report %s: %w", out, err)
	}
	return nil
}
