// Package engine adapts segmentation engines to the pipeline: it owns the
// engine session, marshals images in, and collects the regions that come
// back.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/treerings/internal/raster"
)

// ErrNotStarted is returned when an engine is used before Start succeeded
// or after Stop.
var ErrNotStarted = errors.New("engine not started")

// Error reports an engine failure. Op names the step: start, show, run,
// close or stop.
type Error struct {
	Engine string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s failed during %s: %v", e.Engine, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Display is an image shown in the engine for the duration of one command.
type Display struct {
	ID    string
	Image *raster.Image
	// Handle is engine-specific state, e.g. a temporary file.
	Handle any
}

// Result is what a command leaves behind. Metadata values are regions or
// slices of regions, possibly mixed with unrelated values.
type Result struct {
	Metadata map[string]any
}

// Engine is an image-segmentation service. Implementations are not
// required to be safe for concurrent use; Session serializes access.
type Engine interface {
	Name() string
	Start(ctx context.Context) error
	Show(ctx context.Context, img *raster.Image) (*Display, error)
	Run(ctx context.Context, d *Display, command, options string) (*Result, error)
	Close(d *Display) error
	Stop() error
}

func wrap(name, op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	return &Error{Engine: name, Op: op, Err: err}
}
