// Package metrics provides Prometheus instrumentation for databox loads,
// saves, parse diagnostics and script evaluations.
//
// # Overview
//
// The metrics package provides:
//   - Pre-defined collectors registered on the default registry
//   - A Timer for measuring load and save durations
//   - A process-wide switch so library users can turn recording off
//
// # Basic Usage
//
//	timer := metrics.NewTimer("load")
//	box, err := databox.Load(path)
//	metrics.ObserveLoad("ascii", metrics.Status(err), timer.Stop(), box.Rows(), box.Len())
//
//	metrics.ParseDiagnostics.WithLabelValues("synthetic_keys").Inc()
//
// # Metric Types
//
// Counter: files loaded/saved, diagnostics, script evaluations
// Histogram: load and save durations
// Gauge: rows and columns of the most recent load
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// SetEnabled turns recording on or off for the whole process.
func SetEnabled(on bool) { enabled.Store(on) }

// Enabled reports whether recording is on.
func Enabled() bool { return enabled.Load() }

var (
	// FilesLoaded counts load attempts.
	// Labels: mode (ascii/binary), status (success/failure/aborted)
	//
	// Example:
	//	metrics.FilesLoaded.WithLabelValues("binary", "success").Inc()
	FilesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databox_files_loaded_total",
			Help: "Total number of databox files loaded",
		},
		[]string{"mode", "status"},
	)

	// FilesSaved counts save attempts.
	// Labels: mode (ascii/float16/float32/float64), status (success/failure/aborted)
	FilesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databox_files_saved_total",
			Help: "Total number of databox files saved",
		},
		[]string{"mode", "status"},
	)

	// ParseDiagnostics counts recoverable parse conditions.
	// Labels: kind (no_data/synthetic_keys/duplicate_header/truncated_keys/legacy_rename)
	ParseDiagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databox_parse_diagnostics_total",
			Help: "Recoverable conditions met while parsing databox files",
		},
		[]string{"kind"},
	)

	// ScriptEvaluations counts top-level script evaluations.
	// Labels: status (success/failure/recursion)
	ScriptEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databox_script_evaluations_total",
			Help: "Total number of script evaluations",
		},
		[]string{"status"},
	)

	// IODuration tracks load and save durations in seconds.
	// Labels: operation (load/save)
	IODuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "databox_io_duration_seconds",
			Help: "Duration of databox load and save operations",
			Buckets: []float64{
				0.0001, // 100μs - tiny files
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms - typical sweeps
				1,      // 1s
				10,     // 10s - very long acquisitions
			},
		},
		[]string{"operation"},
	)

	// LastLoadShape reports the rows and columns of the most recent load.
	// Labels: dimension (rows/columns)
	LastLoadShape = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "databox_last_load_shape",
			Help: "Rows and columns of the most recently loaded databox",
		},
		[]string{"dimension"},
	)
)

// Status maps an error to the status label value.
func Status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveLoad records one load attempt.
func ObserveLoad(mode, status string, d time.Duration, rows, columns int) {
	if !Enabled() {
		return
	}
	FilesLoaded.WithLabelValues(mode, status).Inc()
	IODuration.WithLabelValues("load").Observe(d.Seconds())
	if status == "success" {
		LastLoadShape.WithLabelValues("rows").Set(float64(rows))
		LastLoadShape.WithLabelValues("columns").Set(float64(columns))
	}
}

// ObserveSave records one save attempt.
func ObserveSave(mode, status string, d time.Duration) {
	if !Enabled() {
		return
	}
	FilesSaved.WithLabelValues(mode, status).Inc()
	IODuration.WithLabelValues("save").Observe(d.Seconds())
}

// ObserveExport records one columnar export, labelled by format.
func ObserveExport(format, status string, d time.Duration) {
	if !Enabled() {
		return
	}
	FilesSaved.WithLabelValues(format, status).Inc()
	IODuration.WithLabelValues("export").Observe(d.Seconds())
}

// Diagnostic records one recoverable parse condition.
func Diagnostic(kind string) {
	if !Enabled() {
		return
	}
	ParseDiagnostics.WithLabelValues(kind).Inc()
}

// Script records one top-level script evaluation.
func Script(status string) {
	if !Enabled() {
		return
	}
	ScriptEvaluations.WithLabelValues(status).Inc()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
