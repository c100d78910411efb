package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/MeKo-Tech/treerings/internal/calibration"
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/engine/enginetest"
	"github.com/MeKo-Tech/treerings/internal/measure"
	"github.com/MeKo-Tech/treerings/internal/metrics"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/rings"
	"github.com/MeKo-Tech/treerings/internal/table"
	"github.com/MeKo-Tech/treerings/internal/testutil"
	"github.com/MeKo-Tech/treerings/internal/utils"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square is a 50x50 pixel outline.
func square() region.Region {
	return region.NewPolygon("square", []utils.Point{{X: 10, Y: 10}, {X: 60, Y: 10}, {X: 60, Y: 60}, {X: 10, Y: 60}})
}

func squareEngine() *enginetest.Fake {
	return &enginetest.Fake{Metadata: map[string]any{"trunk": square()}}
}

func newPipeline(fake *enginetest.Fake) *Pipeline {
	return New(engine.NewAdapter(engine.NewSession(fake)), options.SegmentTrunk.Defaults())
}

// recorder keeps every event for inspection.
type recorder struct {
	mu     sync.Mutex
	stages []Stage
	events []StageEvent
	failed []Stage
	errs   []error
}

func (r *recorder) OnStage(ev StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, ev.Stage)
	r.events = append(r.events, ev)
}

func (r *recorder) OnError(stage Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, stage)
	r.errs = append(r.errs, err)
}

func TestRun_SyntheticSquareEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTIFF(t, dir, "blank.tif", image.NewGray(image.Rect(0, 0, 256, 256)), testutil.TIFFTags{})
	img, err := raster.Load(path)
	require.NoError(t, err)

	rec := &recorder{}
	p := newPipeline(squareEngine())
	p.Observer = rec
	tbl := table.New()

	out, err := p.Run(context.Background(), img, tbl)
	require.NoError(t, err)

	require.Equal(t, 1, tbl.Len())
	area, _ := tbl.Value(0, measure.ColArea)
	assert.InDelta(t, 2500.0, area, 1e-9)
	unit, _ := tbl.Value(0, measure.ColBaseUnit)
	assert.Equal(t, "pixel", unit)
	objectType, _ := tbl.Value(0, measure.ColObjectType)
	assert.Equal(t, "trunk", objectType)
	name, _ := tbl.Value(0, measure.ColImage)
	assert.Equal(t, "blank.tif", name)
	dirCol, _ := tbl.Value(0, measure.ColPath)
	assert.Equal(t, dir, dirCol)

	assert.True(t, out.Calibration.Defaulted)
	assert.Len(t, out.Regions, 1)
	assert.Len(t, out.Rows, 1)
	assert.Equal(t, []Stage{CalibrationDone, SegmentationDone, MeasurementDone, Complete}, rec.stages)
	assert.Same(t, out, rec.events[3].Outcome)
	assert.Empty(t, rec.failed)
}

func TestRun_AppliesFileCalibration(t *testing.T) {
	path := testutil.WriteTIFF(t, t.TempDir(), "cal.tif", image.NewGray(image.Rect(0, 0, 100, 100)), testutil.TIFFTags{
		XResolution: testutil.Resolution(2, 1),
		Description: "ImageJ=1.54\nunit=mm\n",
	})
	img, err := raster.Load(path)
	require.NoError(t, err)

	tbl := table.New()
	_, err = newPipeline(squareEngine()).Run(context.Background(), img, tbl)
	require.NoError(t, err)

	area, _ := tbl.Value(0, measure.ColArea)
	assert.InDelta(t, 625.0, area, 1e-9)
	unit, _ := tbl.Value(0, measure.ColBaseUnit)
	assert.Equal(t, "mm", unit)
	assert.Equal(t, [2]float64{0.5, 0.5}, img.Scale)
}

func TestRun_InMemoryImageKeepsFrame(t *testing.T) {
	img := raster.New(image.NewGray(image.Rect(0, 0, 80, 80)), "mem")
	img.Scale = [2]float64{2, 2}
	img.Units = [2]string{"cm", "cm"}

	p := newPipeline(squareEngine())
	p.Calibrate = func(string) (calibration.Calibration, error) {
		t.Fatal("calibration must not be read without a path")
		return calibration.Calibration{}, nil
	}
	tbl := table.New()
	out, err := p.Run(context.Background(), img, tbl)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, out.Calibration.PixelSize, 1e-12)
	area, _ := tbl.Value(0, measure.ColArea)
	assert.InDelta(t, 10000.0, area, 1e-9)
	_, hasPath := tbl.Value(0, measure.ColPath)
	assert.True(t, hasPath, "parent link gives a path column")
}

func TestRun_CalibrationFailureStopsBeforeSegmentation(t *testing.T) {
	fake := squareEngine()
	rec := &recorder{}
	p := newPipeline(fake)
	p.Observer = rec
	p.Calibrate = func(path string) (calibration.Calibration, error) {
		return calibration.Calibration{}, &calibration.ReadError{Path: path, Err: errors.New("gone")}
	}
	img := raster.New(image.NewGray(image.Rect(0, 0, 8, 8)), "x.tif")
	img.Path = "/missing/x.tif"
	tbl := table.New()

	out, err := p.Run(context.Background(), img, tbl)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, KindRead, Kind(err))
	assert.Zero(t, fake.Stats().Shown)
	assert.True(t, tbl.Empty())
	assert.Equal(t, []Stage{CalibrationDone}, rec.failed)
	assert.Empty(t, rec.stages)
}

func TestRun_EngineFailureStopsBeforeMeasurement(t *testing.T) {
	fake := &enginetest.Fake{OnRun: func(*raster.Image, string, string) (map[string]any, error) {
		return nil, errors.New("macro error")
	}}
	rec := &recorder{}
	p := newPipeline(fake)
	p.Observer = rec
	tbl := table.New()

	_, err := p.Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 8, 8)), "x"), tbl)
	require.Error(t, err)
	assert.Equal(t, KindEngine, Kind(err))
	assert.True(t, tbl.Empty())
	assert.Equal(t, []Stage{CalibrationDone}, rec.stages)
	assert.Equal(t, []Stage{SegmentationDone}, rec.failed)
	assert.Equal(t, 1, fake.Stats().Closed)
}

func TestRun_NoRegionsIsMeasurementError(t *testing.T) {
	p := newPipeline(&enginetest.Fake{Metadata: map[string]any{}})
	_, err := p.Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 8, 8)), "x"), table.New())
	require.Error(t, err)
	assert.Equal(t, KindMeasurement, Kind(err))
	require.ErrorIs(t, err, measure.ErrNoRegions)
}

func TestRun_OneRowPerRegionInOrder(t *testing.T) {
	bark := square()
	bark.ObjectType = "bark"
	fake := &enginetest.Fake{Metadata: map[string]any{"a-trunk": square(), "b-bark": []region.Region{bark}}}
	tbl := table.New()

	_, err := newPipeline(fake).Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x"), tbl)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []any{"trunk", "bark"}, tbl.Column(measure.ColObjectType))
}

func TestRun_FailedRegionLeavesTableUntouched(t *testing.T) {
	line := region.NewPolygon("line", []utils.Point{{X: 1, Y: 1}, {X: 2, Y: 2}})
	fake := &enginetest.Fake{Metadata: map[string]any{"a-trunk": square(), "b-line": line}}
	tbl := table.New()
	tbl.Add(table.NewRow().Set(measure.ColArea, 1.0))

	out, err := newPipeline(fake).Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x"), tbl)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, KindMeasurement, Kind(err))
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{measure.ColArea}, tbl.Columns())
}

func TestRun_CancelledBeforeSegmentation(t *testing.T) {
	fake := squareEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(fake).Run(ctx, raster.New(image.NewGray(image.Rect(0, 0, 8, 8)), "x"), table.New())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindOther, Kind(err))
	assert.Zero(t, fake.Stats().Shown)
}

// fakeRings returns two concentric square rings around (32, 32).
type fakeRings struct {
	err   error
	empty bool
}

func (f fakeRings) Predict(_ context.Context, img *raster.Image) (*rings.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, w := img.Extent()
	m := region.NewLabelMask(h, w)
	if f.empty {
		return &rings.Prediction{Pith: utils.Point{X: 32, Y: 30}, Labels: m}, nil
	}
	for y := 22; y < 42; y++ {
		for x := 22; x < 42; x++ {
			l := int32(2)
			if y >= 27 && y < 37 && x >= 27 && x < 37 {
				l = 1
			}
			m.Set(y, x, l)
		}
	}
	return &rings.Prediction{Pith: utils.Point{X: 32, Y: 30}, Labels: m, Rings: 2}, nil
}

func TestRun_RingsAddPithColumns(t *testing.T) {
	p := newPipeline(squareEngine()).WithRings(fakeRings{})
	tbl := table.New()

	out, err := p.Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x"), tbl)
	require.NoError(t, err)
	require.NotNil(t, out.Rings)
	require.Equal(t, 3, tbl.Len())

	assert.Equal(t, []any{"trunk", "ring", "ring"}, tbl.Column(measure.ColObjectType))
	pithRow, _ := tbl.Value(1, rings.ColPithRow)
	assert.InDelta(t, 30.0, pithRow, 1e-9)
	pithCol, _ := tbl.Value(2, rings.ColPithCol)
	assert.InDelta(t, 32.0, pithCol, 1e-9)
	trunkPith, _ := tbl.Value(0, rings.ColPithRow)
	assert.True(t, table.IsMissing(trunkPith))

	inner, _ := tbl.Value(1, measure.ColArea)
	assert.InDelta(t, 100.0, inner, 1e-9)
	outer, _ := tbl.Value(2, measure.ColArea)
	assert.InDelta(t, 300.0, outer, 1e-9)
}

func TestRun_NoRingsKeepsTrunk(t *testing.T) {
	p := newPipeline(squareEngine()).WithRings(fakeRings{empty: true})
	tbl := table.New()
	_, err := p.Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x"), tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestRun_RingFailureIsEngineError(t *testing.T) {
	p := newPipeline(squareEngine()).WithRings(fakeRings{err: errors.New("no session")})
	_, err := p.Run(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x"), table.New())
	require.Error(t, err)
	assert.Equal(t, KindEngine, Kind(err))
	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "rings", ee.Engine)
}

func TestRun_RecordsMetrics(t *testing.T) {
	rec := metrics.New()
	p := newPipeline(squareEngine())
	p.Metrics = rec
	img := raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x")

	_, err := p.Run(context.Background(), img, table.New())
	require.NoError(t, err)

	p.Segmenter = engine.NewAdapter(engine.NewSession(&enginetest.Fake{Metadata: map[string]any{}}))
	_, err = p.Run(context.Background(), img, table.New())
	require.Error(t, err)

	n, err := promtest.GatherAndCount(rec.Registry(), "treerings_images_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, err := promtest.GatherAndCount(rec.Registry(), "treerings_regions_measured_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStart_DeliversStagesThenCloses(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(squareEngine())
	p.Observer = rec
	tbl := table.New()

	var got []StageEvent
	for ev := range p.Start(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 64, 64)), "x"), tbl) {
		got = append(got, ev)
	}

	require.Len(t, got, 4)
	for i, ev := range got {
		assert.Equal(t, Stage(i+1), ev.Stage)
		assert.NoError(t, ev.Err)
	}
	require.NotNil(t, got[3].Outcome)
	assert.Equal(t, 1, tbl.Len())
	assert.Len(t, rec.stages, 4, "configured observer still notified")
}

func TestStart_ErrorEventIsLast(t *testing.T) {
	p := newPipeline(&enginetest.Fake{StartErr: errors.New("no fiji")})

	var got []StageEvent
	for ev := range p.Start(context.Background(), raster.New(image.NewGray(image.Rect(0, 0, 8, 8)), "x"), table.New()) {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, CalibrationDone, got[0].Stage)
	last := got[1]
	assert.Equal(t, SegmentationDone, last.Stage)
	require.Error(t, last.Err)
	assert.Equal(t, KindEngine, Kind(last.Err))
	assert.Nil(t, last.Outcome)
}
