// Package trunk is the built-in segmentation engine. It finds the trunk
// outline with colour deconvolution, thresholding and binary morphology on
// a downscaled copy of the image.
package trunk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

// Name identifies the engine in configuration and errors.
const Name = "trunk"

// SegmentFunc finds one outline in full-resolution pixel coordinates, or
// nil when nothing qualifies.
type SegmentFunc func(ctx context.Context, img *raster.Image, p Params, vectors []float64) ([]utils.Point, error)

// Engine runs the trunk recipe in-process.
type Engine struct {
	name    string
	segment SegmentFunc

	mu       sync.Mutex
	running  bool
	displays map[string]*engine.Display
	next     int
}

var _ engine.Engine = (*Engine)(nil)

// New returns a stopped engine using Segment.
func New() *Engine {
	return NewWith(Name, Segment)
}

// NewWith returns a stopped engine that runs the trunk command with an
// alternative segmentation routine.
func NewWith(name string, fn SegmentFunc) *Engine {
	return &Engine{name: name, segment: fn, displays: make(map[string]*engine.Display)}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return e.name }

// Start implements engine.Engine.
func (e *Engine) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	return nil
}

// Stop implements engine.Engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	clear(e.displays)
	return nil
}

// Show implements engine.Engine.
func (e *Engine) Show(_ context.Context, img *raster.Image) (*engine.Display, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil, engine.ErrNotStarted
	}
	e.next++
	d := &engine.Display{ID: fmt.Sprintf("%s-%d", e.name, e.next), Image: img}
	e.displays[d.ID] = d
	return d, nil
}

// Close implements engine.Engine.
func (e *Engine) Close(d *engine.Display) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d == nil {
		return nil
	}
	delete(e.displays, d.ID)
	return nil
}

// Run implements engine.Engine. The only command is "segment trunk". The
// result holds the trunk under "trunk" and, with the do option, the outline
// including the bark under "bark".
func (e *Engine) Run(ctx context.Context, d *engine.Display, command, line string) (*engine.Result, error) {
	if d == nil {
		return nil, errors.New("no display")
	}
	e.mu.Lock()
	_, ok := e.displays[d.ID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("display %s is not open", d.ID)
	}
	if !strings.EqualFold(command, engine.DefaultCommand) {
		return nil, fmt.Errorf("unknown command %q", command)
	}

	opts, err := options.Parse(options.SegmentTrunk, line)
	if err != nil {
		return nil, err
	}
	p, err := ParamsFrom(opts)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]any)
	trunk, err := e.segment(ctx, d.Image, p, p.Vectors)
	if err != nil {
		return nil, err
	}
	if trunk == nil {
		slog.Warn("no trunk found", "image", d.Image.Name)
		return &engine.Result{Metadata: meta}, nil
	}
	meta["trunk"] = region.Region{ObjectType: "trunk", Polygon: trunk}

	if p.Bark {
		bark, err := e.segment(ctx, d.Image, p, p.BarkVectors)
		if err != nil {
			return nil, err
		}
		if bark != nil {
			meta["bark"] = []region.Region{{ObjectType: "bark", Polygon: bark}}
		}
	}
	return &engine.Result{Metadata: meta}, nil
}

// Params are the parsed segment-trunk options.
type Params struct {
	Scale         int
	Sigma         float64
	Thresholding  string
	Opening       int
	Closing       int
	Stroke        float64
	Interpolation float64
	Vectors       []float64
	BarkVectors   []float64
	MinSize       int
	Bark          bool
}

// ParamsFrom validates opts.
func ParamsFrom(opts options.Options) (Params, error) {
	vectors, err := options.ParseVector(opts.Text("vectors", ""))
	if err != nil {
		return Params{}, &options.ConfigError{Key: "vectors", Value: opts.Text("vectors", ""), Err: err}
	}
	bark, err := options.ParseVector(opts.Text("bark", ""))
	if err != nil {
		return Params{}, &options.ConfigError{Key: "bark", Value: opts.Text("bark", ""), Err: err}
	}
	p := Params{
		Scale:         opts.Int("scale", 8),
		Sigma:         opts.Float("sigma", 2),
		Thresholding:  opts.Text("thresholding", "Mean"),
		Opening:       opts.Int("opening", 16),
		Closing:       opts.Int("closing", 8),
		Stroke:        float64(opts.Int("stroke", 8)),
		Interpolation: float64(opts.Int("interpolation", 100)),
		Vectors:       vectors,
		BarkVectors:   bark,
		MinSize:       opts.Int("min", 200),
		Bark:          opts.Bool("do"),
	}
	if p.Scale < 1 {
		return Params{}, &options.ConfigError{Key: "scale", Value: fmt.Sprint(p.Scale), Err: options.ErrInvalidValue}
	}
	if p.Sigma < 0 {
		return Params{}, &options.ConfigError{Key: "sigma", Value: fmt.Sprint(p.Sigma), Err: options.ErrInvalidValue}
	}
	return p, nil
}

// Segment returns the outline of the largest object stained by vectors, in
// full-resolution pixel coordinates, or nil when nothing qualifies.
func Segment(ctx context.Context, img *raster.Image, p Params, vectors []float64) ([]utils.Point, error) {
	h, w := img.Extent()
	if h == 0 || w == 0 {
		return nil, nil
	}

	gray, err := StainImage(img, vectors)
	if err != nil {
		return nil, err
	}

	sw, sh := max(1, w/p.Scale), max(1, h/p.Scale)
	var small image.Image = gray
	if sw != w || sh != h {
		small = imaging.Resize(gray, sw, sh, imaging.Box)
	}
	if p.Sigma > 0 {
		small = imaging.Blur(small, p.Sigma)
	}
	vals := grayValues(small)

	t, err := threshold(p.Thresholding, vals)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(vals))
	for i, v := range vals {
		mask[i] = float64(v) > t
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask = largestComponent(mask, sw, sh, p.MinSize)
	if mask == nil {
		return nil, nil
	}
	mask = fillHoles(mask, sw, sh)
	mask = closing(mask, sw, sh, p.Closing)
	mask = opening(mask, sw, sh, p.Opening)
	mask = largestComponent(mask, sw, sh, 1)
	if mask == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Outline(traceContour(mask, sw, sh), w, h, sw, sh, p), nil
}

// StainImage returns the first-stain concentration of img as an 8-bit
// image scaled to the plane maximum.
func StainImage(img *raster.Image, vectors []float64) (*image.Gray, error) {
	h, w := img.Extent()
	plane, err := stainPlane(img, vectors)
	if err != nil {
		return nil, err
	}
	return toGray(plane, w, h), nil
}

// Outline converts a contour traced on the sw x sh working image into the
// final w x h outline: pixel centres mapped to the full frame, grown to the
// mask edge and inset by the stroke, then resampled.
func Outline(contour []utils.Point, w, h, sw, sh int, p Params) []utils.Point {
	if len(contour) < 3 {
		return nil
	}

	fx, fy := float64(w)/float64(sw), float64(h)/float64(sh)
	outline := make([]utils.Point, len(contour))
	for i, c := range contour {
		outline[i] = utils.Point{X: (c.X + 0.5) * fx, Y: (c.Y + 0.5) * fy}
	}

	// The contour runs through boundary pixel centres, half a working pixel
	// inside the mask edge.
	edge := 0.5 * math.Min(fx, fy)
	outline = offsetPolygon(outline, edge-p.Stroke)
	if len(outline) < 3 {
		return nil
	}
	return utils.ResamplePolygon(outline, p.Interpolation)
}

func grayValues(img image.Image) []uint8 {
	b := img.Bounds()
	out := make([]uint8, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			out = append(out, uint8(r>>8))
		}
	}
	return out
}
