// Package metrics records operational metrics from pipeline runs behind a
// small backend-agnostic interface.
//
// A global backend defaults to a no-op implementation, so instrumentation is
// always safe to call; cmd/courtetl installs Prometheus Pushgateway or
// DogStatsD when configured. Concrete systems live in subpackages.
package metrics

import "time"

// Metric names.
const (
	StepTotal      = "courtetl_step_total"
	StepDuration   = "courtetl_step_duration_seconds"
	RowsTotal      = "courtetl_rows_total"
	ChunksTotal    = "courtetl_chunks_total"
	OutputBytes    = "courtetl_output_bytes_total"
	MirrorBatches  = "courtetl_mirror_batches_total"
	ReferenceLoads = "courtetl_reference_loads_total"
	ReferenceRows  = "courtetl_reference_rows"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/size style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep records latency and success/failure of one step run.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows counts rows for a step; kind is "read" or "written".
func RecordRows(job, step, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "step": step, "kind": kind})
}

// RecordChunk counts one processed chunk.
func RecordChunk(job, step string) {
	backend.IncCounter(ChunksTotal, 1, Labels{"job": job, "step": step})
}

// RecordOutputBytes counts bytes written to a step's output (compressed).
func RecordOutputBytes(job, step string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(OutputBytes, float64(n), Labels{"job": job, "step": step})
}

// RecordBatches counts batches flushed to a SQL mirror.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(MirrorBatches, float64(delta), Labels{"job": job})
}

// RecordReference records one reference-table load and its size.
func RecordReference(job, name string, rows int) {
	lbls := Labels{"job": job, "reference": name}
	backend.IncCounter(ReferenceLoads, 1, lbls)
	backend.ObserveHistogram(ReferenceRows, float64(rows), lbls)
}
