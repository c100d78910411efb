package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/treerings/internal/calibration"
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/measure"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/stretchr/testify/assert"
)

func TestStage_StringAndNext(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "measurement", MeasurementDone.String())
	assert.Equal(t, "unknown", Stage(42).String())
	assert.Equal(t, CalibrationDone, Idle.Next())
	assert.Equal(t, Complete, MeasurementDone.Next())
	assert.Equal(t, Complete, Complete.Next())
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"calibration", &calibration.ReadError{Path: "a", Err: errors.New("x")}, KindRead},
		{"image load", &raster.LoadError{Path: "a", Err: errors.New("x")}, KindRead},
		{"measure", &measure.Error{Op: "regionprops", Err: measure.ErrNoRegions}, KindMeasurement},
		{"engine", &engine.Error{Engine: "fiji", Op: "run", Err: errors.New("x")}, KindEngine},
		{"not started", fmt.Errorf("ctx: %w", engine.ErrNotStarted), KindEngine},
		{
			"config inside engine",
			&engine.Error{Engine: "trunk", Op: "run", Err: &options.ConfigError{Key: "scale", Err: options.ErrInvalidValue}},
			KindConfig,
		},
		{"other", errors.New("plain"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func sampleEvents() []StageEvent {
	c := calibration.Calibration{PixelSize: 0.25, Unit: "mm"}
	return []StageEvent{
		{Image: "a.tif", Stage: CalibrationDone, Calibration: &c, Elapsed: 3 * time.Millisecond},
		{Image: "a.tif", Stage: SegmentationDone, Calibration: &c, Regions: 2},
		{Image: "a.tif", Stage: MeasurementDone, Calibration: &c, Regions: 2, Rows: 2},
		{Image: "a.tif", Stage: Complete, Calibration: &c},
	}
}

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewConsoleObserver(&buf, "[1/3] ")
	for _, ev := range sampleEvents() {
		o.OnStage(ev)
	}
	o.OnError(SegmentationDone, errors.New("engine gone"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"[1/3] a.tif: calibration 0.25 mm (3ms)",
		"[1/3] a.tif: 2 region(s) segmented (0s)",
		"[1/3] a.tif: 2 row(s) measured (0s)",
		"[1/3] a.tif: done",
		"[1/3] segmentation failed: engine gone",
	}, lines)
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o := NewLogObserver(logger, slog.LevelInfo)

	o.OnStage(sampleEvents()[0])
	o.OnError(MeasurementDone, &measure.Error{Op: "measure", Err: measure.ErrNoRegions})

	out := buf.String()
	assert.Contains(t, out, `msg="Stage completed"`)
	assert.Contains(t, out, "stage=calibration")
	assert.Contains(t, out, "unit=mm")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "kind=measurement")
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := NewMultiObserver(a)
	m.Add(b)
	m.Add(NoOpObserver{})

	m.OnStage(sampleEvents()[1])
	m.OnError(Complete, errors.New("x"))

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []Stage{SegmentationDone}, r.stages)
		assert.Equal(t, []Stage{Complete}, r.failed)
	}
}
