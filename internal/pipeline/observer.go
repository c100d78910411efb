package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Observer is notified as the pipeline moves through its stages.
type Observer interface {
	// OnStage is called after a stage completed.
	OnStage(ev StageEvent)

	// OnError is called when the work towards stage failed.
	OnError(stage Stage, err error)
}

// NoOpObserver ignores every event.
type NoOpObserver struct{}

func (NoOpObserver) OnStage(StageEvent)   {}
func (NoOpObserver) OnError(Stage, error) {}

// ConsoleObserver prints one line per stage.
type ConsoleObserver struct {
	writer io.Writer
	prefix string
	mutex  sync.Mutex
}

// NewConsoleObserver creates a console observer. A nil writer means stderr.
func NewConsoleObserver(writer io.Writer, prefix string) *ConsoleObserver {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleObserver{writer: writer, prefix: prefix}
}

func (c *ConsoleObserver) OnStage(ev StageEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch ev.Stage {
	case CalibrationDone:
		_, _ = fmt.Fprintf(c.writer, "%s%s: calibration %g %s (%v)\n", c.prefix, ev.Image,
			ev.Calibration.PixelSize, ev.Calibration.Unit, ev.Elapsed.Round(time.Millisecond))
	case SegmentationDone:
		_, _ = fmt.Fprintf(c.writer, "%s%s: %d region(s) segmented (%v)\n", c.prefix, ev.Image, ev.Regions,
			ev.Elapsed.Round(time.Millisecond))
	case MeasurementDone:
		_, _ = fmt.Fprintf(c.writer, "%s%s: %d row(s) measured (%v)\n", c.prefix, ev.Image, ev.Rows,
			ev.Elapsed.Round(time.Millisecond))
	case Complete:
		_, _ = fmt.Fprintf(c.writer, "%s%s: done\n", c.prefix, ev.Image)
	}
}

func (c *ConsoleObserver) OnError(stage Stage, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "%s%s failed: %v\n", c.prefix, stage, err)
}

// LogObserver logs stage events with slog.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogObserver creates a log observer. A nil logger means slog.Default().
func NewLogObserver(logger *slog.Logger, level slog.Level) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger, level: level}
}

func (l *LogObserver) OnStage(ev StageEvent) {
	attrs := []any{
		"image", ev.Image,
		"stage", ev.Stage.String(),
		"elapsed", ev.Elapsed.Round(time.Millisecond),
	}
	switch ev.Stage {
	case CalibrationDone:
		attrs = append(attrs, "pixel_size", ev.Calibration.PixelSize, "unit", ev.Calibration.Unit,
			"defaulted", ev.Calibration.Defaulted)
	case SegmentationDone:
		attrs = append(attrs, "regions", ev.Regions)
	case MeasurementDone:
		attrs = append(attrs, "rows", ev.Rows)
	}
	l.logger.Log(context.Background(), l.level, "Stage completed", attrs...)
}

func (l *LogObserver) OnError(stage Stage, err error) {
	l.logger.Error("Stage failed", "stage", stage.String(), "kind", string(Kind(err)), "error", err)
}

// MultiObserver fans events out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that reports to all of observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// Add adds another observer.
func (m *MultiObserver) Add(o Observer) {
	m.observers = append(m.observers, o)
}

func (m *MultiObserver) OnStage(ev StageEvent) {
	for _, o := range m.observers {
		o.OnStage(ev)
	}
}

func (m *MultiObserver) OnError(stage Stage, err error) {
	for _, o := range m.observers {
		o.OnError(stage, err)
	}
}
