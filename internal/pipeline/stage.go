package pipeline

import (
	"time"

	"github.com/MeKo-Tech/treerings/internal/calibration"
)

// Stage is a step of the single-image state machine. Stages complete in
// declaration order and none is skipped on success.
type Stage int

const (
	Idle Stage = iota
	CalibrationDone
	SegmentationDone
	MeasurementDone
	Complete
)

var stageNames = [...]string{"idle", "calibration", "segmentation", "measurement", "complete"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Next returns the stage that follows s.
func (s Stage) Next() Stage {
	if s >= Complete {
		return Complete
	}
	return s + 1
}

// StageEvent is emitted when a stage completes, or with Err set when the
// work leading to Stage failed.
type StageEvent struct {
	Image   string
	Stage   Stage
	Elapsed time.Duration

	// Calibration is set from CalibrationDone on.
	Calibration *calibration.Calibration
	// Regions is the number of segmented regions, from SegmentationDone on.
	Regions int
	// Rows is the number of measurement rows, from MeasurementDone on.
	Rows int

	// Outcome is set on the final Complete event of a successful run.
	Outcome *Outcome
	Err     error
}
