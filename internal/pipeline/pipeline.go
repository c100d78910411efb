// Package pipeline runs calibration, segmentation and measurement for one
// image and reports its progress through typed stages.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/treerings/internal/calibration"
	"github.com/MeKo-Tech/treerings/internal/common"
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/measure"
	"github.com/MeKo-Tech/treerings/internal/metrics"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/rings"
	"github.com/MeKo-Tech/treerings/internal/table"
)

// Calibrator reads the calibration of an image file.
type Calibrator func(path string) (calibration.Calibration, error)

// Segmenter turns a calibrated image into regions.
type Segmenter interface {
	Segment(ctx context.Context, img *raster.Image, opts options.Options) ([]region.Region, error)
}

// RingModel predicts ring labels and the pith.
type RingModel interface {
	Predict(ctx context.Context, img *raster.Image) (*rings.Prediction, error)
}

// Pipeline processes one image at a time. It holds no per-image state and
// may be reused sequentially.
type Pipeline struct {
	Calibrate  Calibrator
	Segmenter  Segmenter
	Options    options.Options
	ObjectType string // used for regions the engine did not tag
	Observer   Observer
	Metrics    *metrics.Recorder
	Rings      RingModel
}

// New returns a pipeline reading calibration from TIFF tags.
func New(seg Segmenter, opts options.Options) *Pipeline {
	return &Pipeline{
		Calibrate:  calibration.Read,
		Segmenter:  seg,
		Options:    opts,
		ObjectType: measure.DefaultObjectType,
		Observer:   NoOpObserver{},
	}
}

// WithRings enables the ring stage.
func (p *Pipeline) WithRings(m RingModel) *Pipeline {
	p.Rings = m
	return p
}

// Outcome is the result of one successful run.
type Outcome struct {
	Image       string
	Calibration calibration.Calibration
	Regions     []region.Region
	Rows        []*table.Row
	Rings       *rings.Prediction
	Elapsed     time.Duration
}

func (p *Pipeline) observer() Observer {
	if p.Observer == nil {
		return NoOpObserver{}
	}
	return p.Observer
}

// Run processes img and appends its rows to tbl, one region at a time.
// Each stage starts only after the previous one succeeded; the first failure
// ends the run and tbl keeps the rows added so far.
func (p *Pipeline) Run(ctx context.Context, img *raster.Image, tbl *table.Table) (*Outcome, error) {
	total := common.NewTimer()
	obs := p.observer()
	out := &Outcome{Image: img.Name}

	fail := func(stage Stage, err error) (*Outcome, error) {
		obs.OnError(stage, err)
		p.Metrics.Image(err)
		return nil, err
	}

	// calibration
	t := common.NewNamedTimer(CalibrationDone.String())
	c, err := p.calibrate(img)
	if err != nil {
		return fail(CalibrationDone, err)
	}
	out.Calibration = c
	p.stageDone(obs, StageEvent{Image: img.Name, Stage: CalibrationDone, Calibration: &c}, t)

	// segmentation
	if err := ctx.Err(); err != nil {
		return fail(SegmentationDone, err)
	}
	t = common.NewNamedTimer(SegmentationDone.String())
	regions, err := p.Segmenter.Segment(ctx, img, p.Options)
	if err != nil {
		return fail(SegmentationDone, err)
	}
	if p.Rings != nil {
		pred, err := p.Rings.Predict(ctx, img)
		if err != nil {
			return fail(SegmentationDone, &engine.Error{Engine: "rings", Op: "predict", Err: err})
		}
		out.Rings = pred
		if pred.Rings > 0 {
			regions = append(regions, pred.Region(img))
		} else {
			slog.Warn("No rings found", "image", img.Name)
		}
	}
	out.Regions = regions
	p.stageDone(obs, StageEvent{Image: img.Name, Stage: SegmentationDone, Calibration: &c, Regions: len(regions)}, t)

	// measurement
	if err := ctx.Err(); err != nil {
		return fail(MeasurementDone, err)
	}
	t = common.NewNamedTimer(MeasurementDone.String())
	if len(regions) == 0 {
		return fail(MeasurementDone, &measure.Error{Op: "measure", Err: measure.ErrNoRegions})
	}
	// Rows reach the table only once every region of the image is measured.
	measured := make([][]*table.Row, len(regions))
	objectTypes := make([]string, len(regions))
	for i, r := range regions {
		objectType := r.ObjectType
		if objectType == "" {
			objectType = p.ObjectType
		}
		rows, err := measure.MeasureRegion(r, objectType)
		if err != nil {
			return fail(MeasurementDone, err)
		}
		if objectType == rings.ObjectType && out.Rings != nil {
			for _, row := range rows {
				out.Rings.Annotate(row)
			}
		}
		measured[i], objectTypes[i] = rows, objectType
	}
	for i, rows := range measured {
		measure.AddToTable(tbl, rows)
		p.Metrics.Regions(objectTypes[i], len(rows))
		out.Rows = append(out.Rows, rows...)
	}
	p.stageDone(obs, StageEvent{
		Image: img.Name, Stage: MeasurementDone, Calibration: &c, Regions: len(regions), Rows: len(out.Rows),
	}, t)

	out.Elapsed = total.Stop()
	p.Metrics.Image(nil)
	obs.OnStage(StageEvent{
		Image: img.Name, Stage: Complete, Elapsed: out.Elapsed, Calibration: &c,
		Regions: len(regions), Rows: len(out.Rows), Outcome: out,
	})
	return out, nil
}

// calibrate reads and applies the file calibration. Images without a source
// file keep the frame they already carry.
func (p *Pipeline) calibrate(img *raster.Image) (calibration.Calibration, error) {
	if img.Path == "" {
		return calibration.Calibration{PixelSize: img.Scale[0], Unit: img.Units[0], Defaulted: true}, nil
	}
	read := p.Calibrate
	if read == nil {
		read = calibration.Read
	}
	c, err := read(img.Path)
	if err != nil {
		return c, err
	}
	img.Calibrate(c)
	return c, nil
}

func (p *Pipeline) stageDone(obs Observer, ev StageEvent, t *common.Timer) {
	ev.Elapsed = t.Stop()
	p.Metrics.ObserveStage(t.Name(), ev.Elapsed)
	obs.OnStage(ev)
}

// Start runs the pipeline on a separate goroutine. Every event is delivered
// on the returned channel, which is closed after the final Complete event or
// the error event. tbl must not be used until the channel is closed.
func (p *Pipeline) Start(ctx context.Context, img *raster.Image, tbl *table.Table) <-chan StageEvent {
	events := make(chan StageEvent, len(stageNames)+1)
	run := *p
	run.Observer = NewMultiObserver(p.observer(), &channelObserver{image: img.Name, events: events})

	go func() {
		defer close(events)
		_, _ = run.Run(ctx, img, tbl)
	}()
	return events
}

// channelObserver forwards events to a buffered channel that holds every
// event of one run.
type channelObserver struct {
	image  string
	events chan<- StageEvent
}

func (c *channelObserver) OnStage(ev StageEvent) { c.events <- ev }

func (c *channelObserver) OnError(stage Stage, err error) {
	c.events <- StageEvent{Image: c.image, Stage: stage, Err: err}
}
