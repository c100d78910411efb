// Package enginetest provides a scripted engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/raster"
)

// RunFunc produces the result metadata for one command.
type RunFunc func(img *raster.Image, command, options string) (map[string]any, error)

// Fake records every call and answers Run with OnRun or Metadata.
type Fake struct {
	Metadata map[string]any
	OnRun    RunFunc

	StartErr error
	ShowErr  error
	CloseErr error

	mu       sync.Mutex
	starts   int
	shown    int
	closed   int
	stops    int
	commands []string
	options  []string
	active   int
	maxOpen  int
}

var _ engine.Engine = (*Fake)(nil)

// Name implements engine.Engine.
func (f *Fake) Name() string { return "fake" }

// Start implements engine.Engine.
func (f *Fake) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.StartErr
}

// Show implements engine.Engine.
func (f *Fake) Show(_ context.Context, img *raster.Image) (*engine.Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ShowErr != nil {
		return nil, f.ShowErr
	}
	f.shown++
	f.active++
	f.maxOpen = max(f.maxOpen, f.active)
	return &engine.Display{ID: fmt.Sprintf("display-%d", f.shown), Image: img}, nil
}

// Run implements engine.Engine.
func (f *Fake) Run(_ context.Context, d *engine.Display, command, options string) (*engine.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.options = append(f.options, options)
	run, meta := f.OnRun, f.Metadata
	f.mu.Unlock()

	if run != nil {
		m, err := run(d.Image, command, options)
		if err != nil {
			return nil, err
		}
		meta = m
	}
	return &engine.Result{Metadata: meta}, nil
}

// Close implements engine.Engine.
func (f *Fake) Close(*engine.Display) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.active--
	return f.CloseErr
}

// Stop implements engine.Engine.
func (f *Fake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

// Stats is a snapshot of the recorded calls.
type Stats struct {
	Starts, Shown, Closed, Stops, MaxOpen int
	Commands, Options                     []string
}

// Stats returns the calls recorded so far.
func (f *Fake) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Starts:   f.starts,
		Shown:    f.shown,
		Closed:   f.closed,
		Stops:    f.stops,
		MaxOpen:  f.maxOpen,
		Commands: append([]string(nil), f.commands...),
		Options:  append([]string(nil), f.options...),
	}
}
