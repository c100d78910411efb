// Package metrics records pipeline timings and counts in a private
// prometheus registry that can be dumped in node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder holds the pipeline collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	imagesTotal     *prometheus.CounterVec
	regionsMeasured *prometheus.CounterVec
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "treerings_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		imagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treerings_images_total",
				Help: "Total number of processed images",
			},
			[]string{"status"},
		),
		regionsMeasured: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treerings_regions_measured_total",
				Help: "Total number of measured regions",
			},
			[]string{"object_type"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Image counts one processed image.
func (r *Recorder) Image(err error) {
	if r == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	r.imagesTotal.WithLabelValues(status).Inc()
}

// Regions counts n measured regions of objectType.
func (r *Recorder) Regions(objectType string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.regionsMeasured.WithLabelValues(objectType).Add(float64(n))
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
