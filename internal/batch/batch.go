// Package batch measures every image of a folder into one table.
package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/treerings/internal/common"
	"github.com/MeKo-Tech/treerings/internal/pipeline"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/report"
	"github.com/MeKo-Tech/treerings/internal/table"
)

const (
	// TimestampLayout prefixes the files written at the end of a batch.
	TimestampLayout = "2006-01-02T15-04-05"
	// MeasurementsSuffix names the accumulated measurement table.
	MeasurementsSuffix = "_trunk-measurements.csv"
	// ReportSuffix names the overlay report.
	ReportSuffix = "_trunk-report.pdf"
	// OverlaySuffix names the per-image overlay.
	OverlaySuffix = "_overlay.png"
)

// ItemResult records what happened to one file.
type ItemResult struct {
	Path     string
	Rows     int
	Outline  string
	Overlay  string
	Duration time.Duration
	Err      error
}

// Summary describes a finished batch.
type Summary struct {
	Processed int
	Failed    int
	Rows      int
	Table     string
	Report    string
	Elapsed   time.Duration
}

// Runner processes the files of Source one after another.
type Runner struct {
	Pipeline *pipeline.Pipeline
	Source   string
	Output   string
	Include  []string

	// ContinueOnError records a failed image and moves on instead of
	// ending the batch.
	ContinueOnError bool
	// Report writes an overlay per image and a PDF of all overlays.
	Report bool

	Progress Progress
	Now      func() time.Time
	Load     func(path string) (*raster.Image, error)

	results []ItemResult
	summary Summary
}

// NewRunner returns a runner with the default loader and clock.
func NewRunner(p *pipeline.Pipeline, source, output string) *Runner {
	return &Runner{
		Pipeline: p,
		Source:   source,
		Output:   output,
		Progress: NoOpProgress{},
		Now:      time.Now,
		Load:     raster.Load,
	}
}

// Results returns the per-file results of the last run.
func (r *Runner) Results() []ItemResult { return append([]ItemResult(nil), r.results...) }

// Summary returns the summary of the last completed run.
func (r *Runner) Summary() Summary { return r.summary }

// Run yields a snapshot of the accumulated table after every processed
// image. An empty source yields nothing and writes nothing. Errors are
// yielded with a nil table; unless ContinueOnError is set the first image
// failure ends the batch before the final table is written. Stopping the
// iteration early also skips the final write.
func (r *Runner) Run(ctx context.Context) iter.Seq2[*table.Table, error] {
	return func(yield func(*table.Table, error) bool) {
		r.results = nil
		r.summary = Summary{}

		files, err := discoverFiles(r.Source, r.Include)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(files) == 0 {
			slog.Info("No files to process", "source", r.Source)
			return
		}
		if err := os.MkdirAll(r.Output, 0o750); err != nil {
			yield(nil, fmt.Errorf("create output folder: %w", err))
			return
		}

		progress := r.progress()
		total := common.NewTimer()
		tbl := table.New()
		var overlays []string

		progress.OnStart(len(files))
		for i, path := range files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			res := r.processOne(ctx, path, tbl)
			r.results = append(r.results, res)
			if res.Err != nil {
				r.summary.Failed++
				progress.OnError(i+1, path, res.Err)
				if !r.ContinueOnError {
					yield(nil, fmt.Errorf("%s: %w", filepath.Base(path), res.Err))
					return
				}
				slog.Warn("Skipping failed image", "image", path, "kind", pipeline.Kind(res.Err), "error", res.Err)
				continue
			}

			r.summary.Processed++
			if res.Overlay != "" {
				overlays = append(overlays, res.Overlay)
			}
			progress.OnImage(i+1, len(files), path)
			if !yield(tbl.Clone(), nil) {
				return
			}
		}

		stamp := r.now().Format(TimestampLayout)
		if err := r.finish(stamp, tbl, overlays); err != nil {
			yield(nil, err)
			return
		}
		r.summary.Rows = tbl.Len()
		r.summary.Elapsed = total.Stop()
		progress.OnComplete(r.summary)
	}
}

// processOne runs the pipeline on one file and writes its outline.
func (r *Runner) processOne(ctx context.Context, path string, tbl *table.Table) (res ItemResult) {
	t := common.NewNamedTimer(path)
	res.Path = path
	defer func() { res.Duration = t.Stop() }()

	img, err := r.load(path)
	if err != nil {
		res.Err = err
		return res
	}

	out, err := r.Pipeline.Run(ctx, img, tbl)
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows = len(out.Rows)

	res.Outline = filepath.Join(r.Output, img.Stem()+".csv")
	if err := SaveShapes(res.Outline, out.Regions); err != nil {
		res.Err = err
		return res
	}

	if r.Report {
		ov := report.Overlay{Regions: out.Regions, Caption: img.Name}
		if out.Rings != nil {
			ov.Pith = &out.Rings.Pith
		}
		res.Overlay = filepath.Join(r.Output, img.Stem()+OverlaySuffix)
		if err := report.SaveOverlay(res.Overlay, report.RenderOverlay(img, ov)); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

// finish writes the accumulated table and the report.
func (r *Runner) finish(stamp string, tbl *table.Table, overlays []string) error {
	if tbl.Empty() {
		slog.Warn("No measurements to save", "source", r.Source)
		return nil
	}

	r.summary.Table = filepath.Join(r.Output, stamp+MeasurementsSuffix)
	if err := tbl.SaveCSV(r.summary.Table); err != nil {
		return fmt.Errorf("save measurements: %w", err)
	}
	slog.Info("Measurements saved", "path", r.summary.Table, "rows", tbl.Len())

	if r.Report && len(overlays) > 0 {
		r.summary.Report = filepath.Join(r.Output, stamp+ReportSuffix)
		if err := report.BuildPDF(overlays, r.summary.Report); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) progress() Progress {
	if r.Progress == nil {
		return NoOpProgress{}
	}
	return r.Progress
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) load(path string) (*raster.Image, error) {
	if r.Load == nil {
		return raster.Load(path)
	}
	return r.Load(path)
}

// Failed returns the errors of the last run, joined.
func (r *Runner) Failed() error {
	var errs []error
	for _, res := range r.results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(res.Path), res.Err))
		}
	}
	return errors.Join(errs...)
}
