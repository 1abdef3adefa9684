// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. It suits batch CLI runs that exit before a scrape.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"fiscaletl/internal/metrics"
)

// Backend holds one registry of counter and histogram vectors and pushes it
// to the gateway on Flush.
type Backend struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// counterLabels and histogramLabels fix the label set per metric name.
var (
	counterLabels = map[string][]string{
		metrics.StepTotal:         {"step", "status"},
		metrics.FilesTotal:        {"outcome", "shape"},
		metrics.RowsTotal:         {"kind"},
		metrics.BatchesTotal:      nil,
		metrics.HTTPRequestsTotal: {"status"},
	}
	histogramLabels = map[string][]string{
		metrics.StepDuration:        {"step", "status"},
		metrics.HTTPRequestDuration: {"status"},
	}
)

// NewBackend registers every known metric and targets gatewayURL under job.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty gateway url")
	}
	if job == "" {
		job = "fiscal_ingest"
	}

	b := &Backend{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for name, labels := range counterLabels {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: "Fiscal ingestion counter " + name,
		}, labels)
		if err := b.registry.Register(cv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.counters[name] = cv
	}
	for name, labels := range histogramLabels {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    "Fiscal ingestion histogram " + name,
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels)
		if err := b.registry.Register(hv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.histograms[name] = hv
	}

	b.pusher = push.New(gatewayURL, job).Gatherer(b.registry)
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	cv, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	cv.With(pick(counterLabels[name], labels)).Add(delta)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	hv, ok := b.histograms[name]
	if !ok || value < 0 {
		return
	}
	hv.With(pick(histogramLabels[name], labels)).Observe(value)
}

// Flush pushes the whole registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Gather exposes the registry, mainly for tests and debugging.
func (b *Backend) Gather() (map[string]float64, error) {
	mfs, err := b.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// pick returns exactly the declared label names, filling gaps with "unknown".
func pick(names []string, l metrics.Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		v := l[n]
		if v == "" {
			v = "unknown"
		}
		out[n] = v
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
