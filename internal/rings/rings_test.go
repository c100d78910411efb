package rings

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/treerings/internal/measure"
	"github.com/MeKo-Tech/treerings/internal/onnx/mock"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/table"
	"github.com/MeKo-Tech/treerings/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InputSize = 32
	cfg.MinArea = 4
	return cfg
}

// ringPredictor answers with a pith at (32, 32) and rings every 8 pixels on
// a 64x64 map.
func ringPredictor() (*Predictor, *mock.Model, *mock.Model) {
	pith := mock.NewModel(mock.NewBlobMap(64, 64, 32, 32, 1, 3))
	ringModel := mock.NewModel(mock.NewRingBoundaryMap(64, 64, 32, 32, 8, 2, 1, 0))
	return NewWithModels(testConfig(), pith, ringModel), pith, ringModel
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.InputSize = 0
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Threshold = 1
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MinArea = -1
	require.Error(t, bad.Validate())
}

func TestNew_MissingModelNamesPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = t.TempDir()
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join(cfg.ModelsDir))
	assert.Contains(t, err.Error(), "pith.onnx")
}

func TestPredict_ConcentricRings(t *testing.T) {
	p, pith, ringModel := ringPredictor()
	img := raster.New(image.NewRGBA(image.Rect(0, 0, 128, 128)), "slice.tif")

	pred, err := p.Predict(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, 4, pred.Rings)
	assert.Equal(t, []int32{1, 2, 3, 4}, pred.Labels.Labels())
	assert.Equal(t, 128, pred.Labels.Height)
	assert.Equal(t, 128, pred.Labels.Width)

	assert.InDelta(t, 64.5, pred.Pith.X, 1e-9)
	assert.InDelta(t, 64.5, pred.Pith.Y, 1e-9)
	assert.Equal(t, int32(1), pred.Labels.At(64, 64), "innermost region holds the pith")

	// labels grow outwards
	for l := int32(1); l < 4; l++ {
		assert.Less(t, pred.Labels.Count(l), pred.Labels.Count(l+1))
	}
	assert.Equal(t, int32(0), pred.Labels.At(0, 0), "border region is dropped")

	require.Len(t, pith.Inputs(), 1)
	require.Len(t, ringModel.Inputs(), 1)
	assert.Equal(t, []int64{1, 3, 32, 32}, ringModel.Inputs()[0].Shape)
}

func TestPredict_RegionAndAnnotate(t *testing.T) {
	p, _, _ := ringPredictor()
	img := raster.New(image.NewRGBA(image.Rect(0, 0, 64, 64)), "disc.png")
	img.Path = "/data/disc.png"
	img.Scale = [2]float64{0.5, 0.5}
	img.Units = [2]string{"mm", "mm"}

	pred, err := p.Predict(context.Background(), img)
	require.NoError(t, err)

	r := pred.Region(img)
	assert.Equal(t, ObjectType, r.ObjectType)
	assert.Equal(t, "ring of disc.png", r.Name)
	require.NotNil(t, r.Parent)
	assert.Equal(t, "/data/disc.png", r.Parent.Path)
	assert.False(t, r.IsPolygon())

	rows, err := measure.MeasureRegion(r, r.ObjectType)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	tbl := table.New()
	for _, row := range rows {
		pred.Annotate(row)
		tbl.Add(row)
	}
	v, ok := tbl.Value(0, ColPithRow)
	require.True(t, ok)
	assert.InDelta(t, 32.0, v, 1e-9)
	v, ok = tbl.Value(3, measure.ColObjectType)
	require.True(t, ok)
	assert.Equal(t, "ring", v)
}

func TestPredict_InferenceErrors(t *testing.T) {
	img := raster.New(image.NewRGBA(image.Rect(0, 0, 16, 16)), "x")

	p, pith, _ := ringPredictor()
	pith.Err = errors.New("cuda gone")
	_, err := p.Predict(context.Background(), img)
	require.ErrorContains(t, err, "pith inference: cuda gone")

	p, _, ringModel := ringPredictor()
	ringModel.Err = errors.New("bad graph")
	_, err = p.Predict(context.Background(), img)
	require.ErrorContains(t, err, "rings inference: bad graph")
}

func TestPredict_CancelledContext(t *testing.T) {
	p, pith, _ := ringPredictor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, raster.New(image.NewRGBA(image.Rect(0, 0, 8, 8)), "x"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pith.Inputs())
}

func TestPredictor_Close(t *testing.T) {
	p, pith, ringModel := ringPredictor()
	require.NoError(t, p.Close())
	assert.True(t, pith.Closed())
	assert.True(t, ringModel.Closed())
}

func TestLabelRings_DropsSmallAndBorderRegions(t *testing.T) {
	// 7x7 map: a 1-pixel hole at row 1 col 5, a 3x3 hole at the centre, the rest
	// boundary except the left column which touches the border.
	const w, h = 7, 7
	prob := make([]float32, w*h)
	for i := range prob {
		prob[i] = 1
	}
	prob[1*w+5] = 0
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			prob[y*w+x] = 0
		}
	}
	for y := range h {
		prob[y*w] = 0
	}

	m, n := labelRings(prob, h, w, 0.5, 2, utils.Point{X: 3.5, Y: 3.5})
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), m.At(3, 3))
	assert.Equal(t, int32(0), m.At(1, 5), "below min area")
	assert.Equal(t, int32(0), m.At(3, 0), "touches border")
	assert.Equal(t, 9, m.Count(1))
}

func TestArgmax_FirstMaximumWins(t *testing.T) {
	x, y := argmax([]float32{0, 3, 1, 3, 0, 0}, 3)
	assert.Equal(t, 1, x)
	assert.Equal(t, 0, y)
}

func TestUpscale_Nearest(t *testing.T) {
	p, _, _ := ringPredictor()
	pred, err := p.Predict(context.Background(), raster.New(image.NewRGBA(image.Rect(0, 0, 64, 64)), "x"))
	require.NoError(t, err)

	big := upscale(pred.Labels, 128, 96)
	assert.Equal(t, 128, big.Height)
	assert.Equal(t, 96, big.Width)
	assert.Equal(t, pred.Labels.At(32, 32), big.At(64, 48))
	assert.Same(t, pred.Labels, upscale(pred.Labels, 64, 64))
}
