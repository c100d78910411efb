// Package rings predicts the pith position and the annual ring regions of a
// trunk cross-section with two ONNX models.
package rings

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/treerings/internal/mempool"
	"github.com/MeKo-Tech/treerings/internal/models"
	"github.com/MeKo-Tech/treerings/internal/onnx"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/table"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

// ObjectType tags ring measurements.
const ObjectType = "ring"

// Pith columns added to every ring row.
const (
	ColPithRow = "pith-0"
	ColPithCol = "pith-1"
)

// Config holds the model locations and post-processing parameters.
type Config struct {
	ModelsDir  string
	PithModel  string // resolved under ModelsDir when empty
	RingsModel string // resolved under ModelsDir when empty
	InputSize  int
	Threshold  float32 // boundary probability above which a pixel separates rings
	MinArea    int     // smaller ring regions are dropped, in model pixels
	NumThreads int
	GPU        onnx.GPUConfig
}

// DefaultConfig returns the settings the bundled models were trained with.
func DefaultConfig() Config {
	return Config{
		InputSize: 512,
		Threshold: 0.5,
		MinArea:   16,
		GPU:       onnx.DefaultGPUConfig(),
	}
}

// Validate checks the post-processing parameters.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got %d", c.InputSize)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %g", c.Threshold)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("min area must be non-negative, got %d", c.MinArea)
	}
	return onnx.ValidateGPUConfig(c.GPU)
}

// Inferencer runs one model on an NCHW tensor.
type Inferencer interface {
	Infer(in onnx.Tensor) (onnx.Tensor, error)
	Close() error
}

// Predictor couples the pith and ring models.
type Predictor struct {
	cfg   Config
	pith  Inferencer
	rings Inferencer
}

// New opens both models. A missing model file is reported with the path
// that was expected.
func New(cfg Config) (*Predictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pithPath := cfg.PithModel
	if pithPath == "" {
		pithPath = models.GetPithModelPath(cfg.ModelsDir)
	}
	ringsPath := cfg.RingsModel
	if ringsPath == "" {
		ringsPath = models.GetRingsModelPath(cfg.ModelsDir)
	}
	for _, p := range []string{pithPath, ringsPath} {
		if err := models.ValidateModelExists(p); err != nil {
			return nil, err
		}
	}

	sc := onnx.SessionConfig{NumThreads: cfg.NumThreads, GPU: cfg.GPU}
	pith, err := onnx.Open(pithPath, sc)
	if err != nil {
		return nil, fmt.Errorf("open pith model: %w", err)
	}
	ringModel, err := onnx.Open(ringsPath, sc)
	if err != nil {
		_ = pith.Close()
		return nil, fmt.Errorf("open rings model: %w", err)
	}
	return NewWithModels(cfg, pith, ringModel), nil
}

// NewWithModels builds a predictor around already opened models.
func NewWithModels(cfg Config, pith, rings Inferencer) *Predictor {
	return &Predictor{cfg: cfg, pith: pith, rings: rings}
}

// Close releases both models.
func (p *Predictor) Close() error {
	return errors.Join(p.pith.Close(), p.rings.Close())
}

// Prediction is the model output mapped back to the image frame.
type Prediction struct {
	Pith   utils.Point // X column, Y row
	Labels *region.LabelMask
	Rings  int
}

// Region returns the ring labels as a region linked to img.
func (p *Prediction) Region(img *raster.Image) region.Region {
	r := region.NewLabels(fmt.Sprintf("%s of %s", ObjectType, img.Name), p.Labels).WithParent(img)
	r.ObjectType = ObjectType
	return r
}

// Annotate adds the pith position to row.
func (p *Prediction) Annotate(row *table.Row) {
	row.Set(ColPithRow, p.Pith.Y).Set(ColPithCol, p.Pith.X)
}

// Predict runs both models on img.
func (p *Predictor) Predict(ctx context.Context, img *raster.Image) (*Prediction, error) {
	in, err := p.preprocess(img)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(in.Data)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pithOut, err := p.pith.Infer(in)
	if err != nil {
		return nil, fmt.Errorf("pith inference: %w", err)
	}
	heat, hh, hw, err := pithOut.Plane(0, 0)
	if err != nil {
		return nil, fmt.Errorf("pith output: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ringOut, err := p.rings.Infer(in)
	if err != nil {
		return nil, fmt.Errorf("rings inference: %w", err)
	}
	prob, rh, rw, err := ringOut.Plane(0, 0)
	if err != nil {
		return nil, fmt.Errorf("rings output: %w", err)
	}

	h, w := img.Extent()
	px, py := argmax(heat, hw)
	pith := utils.Point{
		X: (float64(px)+0.5)*float64(w)/float64(hw) - 0.5,
		Y: (float64(py)+0.5)*float64(h)/float64(hh) - 0.5,
	}
	// pith in the ring map's frame
	pr := utils.Point{
		X: (float64(px) + 0.5) * float64(rw) / float64(hw),
		Y: (float64(py) + 0.5) * float64(rh) / float64(hh),
	}

	small, n := labelRings(prob, rh, rw, p.cfg.Threshold, p.cfg.MinArea, pr)
	labels := upscale(small, h, w)
	slog.Debug("rings predicted", "image", img.Name, "rings", n, "pith_x", pith.X, "pith_y", pith.Y)
	return &Prediction{Pith: pith, Labels: labels, Rings: n}, nil
}

// preprocess resizes img to the model input and returns a pooled tensor.
func (p *Predictor) preprocess(img *raster.Image) (onnx.Tensor, error) {
	size := p.cfg.InputSize
	resized, err := utils.ResizeExact(img.Pixels, size, size)
	if err != nil {
		return onnx.Tensor{}, err
	}
	data, w, h, err := utils.NormalizeImagePooled(resized)
	if err != nil {
		return onnx.Tensor{}, err
	}
	t, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		mempool.PutFloat32(data)
		return onnx.Tensor{}, err
	}
	return t, nil
}

// argmax returns the column and row of the largest value; ties keep the
// first in row-major order.
func argmax(data []float32, w int) (int, int) {
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best % w, best / w
}

type component struct {
	label int32
	area  int
	dist  float64
}

// labelRings labels the 4-connected regions below threshold. Regions that
// touch the map border or are smaller than minArea are dropped; the rest are
// numbered by mean distance to pith, innermost first.
func labelRings(prob []float32, h, w int, threshold float32, minArea int, pith utils.Point) (*region.LabelMask, int) {
	comp := mempool.GetInt32(h * w)
	defer mempool.PutInt32(comp)

	var comps []component
	queue := make([]int, 0, 256)
	for start := range prob {
		if comp[start] != 0 || prob[start] >= threshold {
			continue
		}
		c := component{label: int32(len(comps) + 1)}
		touches := false
		var sum float64
		comp[start] = c.label
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			y, x := i/w, i%w
			c.area++
			sum += math.Hypot(float64(x)+0.5-pith.X, float64(y)+0.5-pith.Y)
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				touches = true
			}
			for _, n := range [4][2]int{{y - 1, x}, {y + 1, x}, {y, x - 1}, {y, x + 1}} {
				ny, nx := n[0], n[1]
				if ny < 0 || ny >= h || nx < 0 || nx >= w {
					continue
				}
				j := ny*w + nx
				if comp[j] == 0 && prob[j] < threshold {
					comp[j] = c.label
					queue = append(queue, j)
				}
			}
		}
		c.dist = sum / float64(c.area)
		if touches || c.area < minArea {
			c.label = -c.label
		}
		comps = append(comps, c)
	}

	kept := make([]component, 0, len(comps))
	for _, c := range comps {
		if c.label > 0 {
			kept = append(kept, c)
		}
	}
	slices.SortStableFunc(kept, func(a, b component) int { return cmp.Compare(a.dist, b.dist) })

	relabel := make([]int32, len(comps)+1)
	for i, c := range kept {
		relabel[c.label] = int32(i + 1)
	}
	out := region.NewLabelMask(h, w)
	for i, c := range comp {
		if c > 0 {
			out.Data[i] = relabel[c]
		}
	}
	return out, len(kept)
}

// upscale resamples m to h x w with nearest-neighbour lookup.
func upscale(m *region.LabelMask, h, w int) *region.LabelMask {
	if m.Height == h && m.Width == w {
		return m
	}
	out := region.NewLabelMask(h, w)
	for y := range h {
		sy := min(m.Height-1, y*m.Height/h)
		for x := range w {
			sx := min(m.Width-1, x*m.Width/w)
			out.Data[y*w+x] = m.Data[sy*m.Width+sx]
		}
	}
	return out
}
