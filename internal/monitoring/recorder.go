// Package monitoring exports pipeline run health: Prometheus metrics of
// stage summaries and webhook alerts derived from the run log.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/macro/report"
)

const namespace = "macro"

// Recorder accumulates stage summaries in a private Prometheus registry.
type Recorder struct {
	reg         *prometheus.Registry
	rows        *prometheus.CounterVec
	conditions  *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows produced per stage and table.",
		}, []string{"stage", "table"}),
		conditions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conditions_total",
			Help:      "Skipped or flagged units per stage and reason.",
		}, []string{"stage", "reason"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_total",
			Help:      "Units dropped per stage.",
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage runs that returned an error.",
		}, []string{"stage"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the latest run of each stage.",
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the latest successful run of each stage.",
		}, []string{"stage"}),
	}
	r.reg.MustRegister(r.rows, r.conditions, r.skipped, r.failures, r.duration, r.lastSuccess)
	return r
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Record adds one stage run. Counts are recorded even when the stage
// failed so partial work stays visible.
func (r *Recorder) Record(snap report.Snapshot, elapsed time.Duration, runErr error) {
	for _, table := range snap.TableKeys() {
		r.rows.WithLabelValues(snap.Stage, table).Add(float64(snap.Produced[table]))
	}
	for _, reason := range snap.ReasonKeys() {
		r.conditions.WithLabelValues(snap.Stage, string(reason)).Add(float64(snap.Reasons[reason]))
	}
	r.skipped.WithLabelValues(snap.Stage).Add(float64(snap.Skipped))
	r.duration.WithLabelValues(snap.Stage).Set(elapsed.Seconds())
	if runErr != nil {
		r.failures.WithLabelValues(snap.Stage).Inc()
		return
	}
	r.lastSuccess.WithLabelValues(snap.Stage).SetToCurrentTime()
}

// WriteTextfile writes the metrics in node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, r.reg), "monitoring: write textfile %s", path)
}
