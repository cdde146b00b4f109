// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from parsing runs.
//
// The package exposes a narrow Backend interface (counters and timings) and a
// global, pluggable backend that defaults to a no-op, so instrumentation is
// always safe to call even when no real backend is configured. Concrete
// systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StepTotal           = "engine_step_total"
	StepDurationSeconds = "engine_step_duration_seconds"
	RecordsTotal        = "engine_records_total"
	BatchesTotal        = "engine_batches_total"
	ActionFailuresTotal = "engine_action_failures_total"
)

// Record kinds used with RecordRow.
const (
	KindRead       = "read"
	KindParseError = "parse_error"
	KindProcessed  = "processed"
	KindEmpty      = "empty"
	KindDuplicate  = "duplicate"
	KindLoaded     = "loaded"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one run step (open,
// read, process, load).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches increments the flushed-batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordActionFailures counts failed actions for a rule source.
func RecordActionFailures(job, source string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(ActionFailuresTotal, float64(delta), Labels{"job": job, "source": source})
}
