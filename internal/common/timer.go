// Package common holds small helpers shared by the pipeline and the CLI.
package common

import (
	"fmt"
	"time"
)

// Timer measures one named span of work.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
	now      func() time.Time
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return newTimer("", time.Now)
}

// NewNamedTimer starts a timer for the stage or step called name.
func NewNamedTimer(name string) *Timer {
	return newTimer(name, time.Now)
}

func newTimer(name string, now func() time.Time) *Timer {
	return &Timer{name: name, start: now(), now: now}
}

// Stop records and returns the time since the timer started. Stopping
// again extends the span.
func (t *Timer) Stop() time.Duration {
	t.duration = t.now().Sub(t.start)
	return t.duration
}

// Duration returns the span recorded by the last Stop.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	d := t.duration.Round(time.Millisecond)
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, d)
	}
	return d.String()
}

// Rate formats n items over d as items per second.
func Rate(n int, d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f/s", float64(n)/d.Seconds())
}
