// Package metrics records per-run pipeline measurements in a private
// Prometheus registry. A batch run has no scrape endpoint, so the registry is
// dumped in the node-exporter textfile format when the run ends.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/stage"
)

// Metrics is the set of collectors for one run. The zero value is not
// usable; a nil *Metrics is, and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	StageDuration    *prometheus.HistogramVec
	Trials           *prometheus.CounterVec
	DegeneratePixels prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "widefield_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		Trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "widefield_trials_total",
			Help: "Trials grouped per stimulus condition.",
		}, []string{"condition"}),
		DegeneratePixels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "widefield_degenerate_pixels_total",
			Help: "Trial pixels whose baseline had zero variance.",
		}),
	}
	m.Registry.MustRegister(m.StageDuration, m.Trials, m.DegeneratePixels)
	return m
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(name stage.Name, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(name)).Observe(d.Seconds())
}

// AddTrials counts n repetitions of a condition.
func (m *Metrics) AddTrials(label conditions.Label, n int) {
	if m == nil {
		return
	}
	m.Trials.WithLabelValues(fmt.Sprint(int(label))).Add(float64(n))
}

// AddDegenerate counts flat-baseline trial pixels.
func (m *Metrics) AddDegenerate(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DegeneratePixels.Add(float64(n))
}

// WriteTextfile writes the registry to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
