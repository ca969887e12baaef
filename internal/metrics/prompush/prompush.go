// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Every courtetl metric maps to one client_golang collector with a fixed
// label set; job is not a label but the Pushgateway grouping key. A batch
// process has no scrape endpoint, so Flush pushes the whole registry at the
// end of a run.
package prompush

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"courtetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	counters  map[string]*labeledCounter
	summaries map[string]*labeledSummary
}

type labeledCounter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type labeledSummary struct {
	vec    *prometheus.SummaryVec
	labels []string
}

var objectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

// NewBackend constructs a Pushgateway backend. jobName defaults to
// "courtetl"; gatewayURL is required.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "courtetl"
	}
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		counters:   map[string]*labeledCounter{},
		summaries:  map[string]*labeledSummary{},
	}

	counters := []struct {
		name, help string
		labels     []string
	}{
		{metrics.StepTotal, "Step runs by step and status.", []string{"step", "status"}},
		{metrics.RowsTotal, "Rows read from sources and written to outputs, by step.", []string{"step", "kind"}},
		{metrics.ChunksTotal, "Chunks processed, by step.", []string{"step"}},
		{metrics.OutputBytes, "Compressed output bytes, by step.", []string{"step"}},
		{metrics.MirrorBatches, "Batches copied into SQL mirrors.", nil},
		{metrics.ReferenceLoads, "Reference table loads.", []string{"reference"}},
	}
	for _, c := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.name, Help: c.help}, c.labels)
		if err := b.reg.Register(vec); err != nil {
			return nil, errors.Wrapf(err, "prompush: register %s", c.name)
		}
		b.counters[c.name] = &labeledCounter{vec: vec, labels: c.labels}
	}

	summaries := []struct {
		name, help string
		labels     []string
	}{
		{metrics.StepDuration, "Step duration in seconds, by step and status.", []string{"step", "status"}},
		{metrics.ReferenceRows, "Rows per loaded reference table.", []string{"reference"}},
	}
	for _, s := range summaries {
		vec := prometheus.NewSummaryVec(prometheus.SummaryOpts{Name: s.name, Help: s.help, Objectives: objectives}, s.labels)
		if err := b.reg.Register(vec); err != nil {
			return nil, errors.Wrapf(err, "prompush: register %s", s.name)
		}
		b.summaries[s.name] = &labeledSummary{vec: vec, labels: s.labels}
	}
	return b, nil
}

func values(names []string, labels metrics.Labels) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = labels[n]
	}
	return out
}

// IncCounter ignores unknown metric names.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	c, ok := b.counters[name]
	if !ok {
		return
	}
	c.vec.WithLabelValues(values(c.labels, labels)...).Add(delta)
}

// ObserveHistogram ignores unknown metric names.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	s, ok := b.summaries[name]
	if !ok {
		return
	}
	s.vec.WithLabelValues(values(s.labels, labels)...).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
