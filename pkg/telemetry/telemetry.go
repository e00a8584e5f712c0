// Package telemetry records run counters on a private Prometheus registry
// and writes them for the node-exporter textfile collector.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

const namespace = "diamondprep"

// Recorder holds the metrics of one preparation run.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	rows          *prometheus.CounterVec
	artifactBytes *prometheus.CounterVec
	duration      prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewRecorder creates a Recorder on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed by stage (fetched, dropped, train, test, sample).",
		}, []string{"stage"}),
		artifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes written per artifact.",
		}, []string{"artifact"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last preparation run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
	r.registry.MustRegister(r.rows, r.artifactBytes, r.duration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Stage names for AddRows.
const (
	StageFetched = "fetched"
	StageDropped = "dropped"
	StageTrain   = "train"
	StageTest    = "test"
	StageSample  = "sample"
)

// AddRows adds n rows to stage.
func (r *Recorder) AddRows(stage string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rows.WithLabelValues(stage).Add(float64(n))
}

// AddArtifact records the size of a written artifact.
func (r *Recorder) AddArtifact(key string, size int64) {
	if r == nil || size < 0 {
		return
	}
	r.artifactBytes.WithLabelValues(key).Add(float64(size))
}

// ObserveRun records the run duration and, on success, the completion time.
func (r *Recorder) ObserveRun(d time.Duration, succeeded bool, now time.Time) {
	if r == nil {
		return
	}
	r.duration.Set(d.Seconds())
	if succeeded {
		r.lastSuccess.Set(float64(now.Unix()))
	}
}

// WriteTextfile writes the registry to path in the text exposition format.
// The write goes through a temporary file and a rename.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
