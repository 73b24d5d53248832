// Package metrics collects pipeline metrics in a private Prometheus
// registry and exports them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the metrics of one process.
type Recorder struct {
	reg *prometheus.Registry

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	rows          *prometheus.GaugeVec
	castFailures  *prometheus.GaugeVec
	unresolved    *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		stageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leapstar_stage_total",
				Help: "Pipeline stage executions by entity, stage and status.",
			},
			[]string{"entity", "stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leapstar_stage_duration_seconds",
				Help:    "Duration of pipeline stages.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
			},
			[]string{"entity", "stage"},
		),
		rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leapstar_entity_rows",
				Help: "Rows written to each table by the last run.",
			},
			[]string{"entity"},
		),
		castFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leapstar_cast_failures",
				Help: "Values stored as null because they could not be cast, by entity.",
			},
			[]string{"entity"},
		),
		unresolved: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leapstar_unresolved_keys",
				Help: "Fact rows left with a null foreign key, by dimension.",
			},
			[]string{"dimension"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leapstar_last_run_timestamp_seconds",
				Help: "Completion time of the last run by status.",
			},
			[]string{"status"},
		),
	}
	r.reg.MustRegister(r.stageTotal, r.stageDuration, r.rows, r.castFailures, r.unresolved, r.lastRun)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Stage records one stage execution.
func (r *Recorder) Stage(entity, stage string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	r.stageTotal.WithLabelValues(entity, stage, status).Inc()
	r.stageDuration.WithLabelValues(entity, stage).Observe(d.Seconds())
}

// Rows sets the rows written to entity.
func (r *Recorder) Rows(entity string, n int64) {
	r.rows.WithLabelValues(entity).Set(float64(n))
}

// CastFailures sets the cast failures seen while building entity.
func (r *Recorder) CastFailures(entity string, n int) {
	r.castFailures.WithLabelValues(entity).Set(float64(n))
}

// Unresolved sets the fact rows left without a key for dimension.
func (r *Recorder) Unresolved(dimension string, n int) {
	r.unresolved.WithLabelValues(dimension).Set(float64(n))
}

// RunFinished records the completion time of a run.
func (r *Recorder) RunFinished(status string, at time.Time) {
	r.lastRun.WithLabelValues(status).Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
