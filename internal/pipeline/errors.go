package pipeline

import (
	"errors"

	"github.com/MeKo-Tech/treerings/internal/calibration"
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/measure"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindRead        ErrorKind = "read"
	KindEngine      ErrorKind = "engine"
	KindMeasurement ErrorKind = "measurement"
	KindConfig      ErrorKind = "config"
	KindOther       ErrorKind = "other"
)

// Kind returns the class of err. Option errors win over the engine error
// that usually carries them.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var cfgErr *options.ConfigError
	var readErr *calibration.ReadError
	var loadErr *raster.LoadError
	var measureErr *measure.Error
	var engineErr *engine.Error

	switch {
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &readErr), errors.As(err, &loadErr):
		return KindRead
	case errors.As(err, &measureErr):
		return KindMeasurement
	case errors.As(err, &engineErr), errors.Is(err, engine.ErrNotStarted):
		return KindEngine
	default:
		return KindOther
	}
}
