// Package metrics is the backend-neutral instrumentation surface used by the
// ingestion engine and the HTTP server.
//
// Core code calls the Record* helpers; cmd/ wiring picks a Backend with
// SetBackend (Pushgateway, Datadog, or none). Without a backend every call is
// a no-op.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives counter increments and histogram observations.
//
// Implementations must be safe for concurrent use. Unknown metric names may be
// ignored.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared by every backend.
const (
	StepTotal           = "fiscal_step_total"
	StepDuration        = "fiscal_step_duration_seconds"
	FilesTotal          = "fiscal_files_total"
	RowsTotal           = "fiscal_rows_total"
	BatchesTotal        = "fiscal_batches_total"
	HTTPRequestsTotal   = "fiscal_http_requests_total"
	HTTPRequestDuration = "fiscal_http_request_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush asks the current backend to submit buffered data.
func Flush() error { return current().Flush() }

// RecordStep counts one pipeline step (sniff, decode, shape, synth, write...)
// and observes its duration. status is "ok" or "error".
func RecordStep(step, status string, d time.Duration) {
	b := current()
	l := Labels{"step": step, "status": status}
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDuration, d.Seconds(), l)
}

// RecordFile counts one processed upload by outcome ("ok", "failed") and
// detected shape.
func RecordFile(outcome, shape string) {
	current().IncCounter(FilesTotal, 1, Labels{"outcome": outcome, "shape": shape})
}

// RecordRows adds n rows written for a table kind (header, items, flat, csv).
func RecordRows(kind string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordBatch counts one completed batch.
func RecordBatch() {
	current().IncCounter(BatchesTotal, 1, nil)
}

// RecordHTTP counts one served request and its latency.
func RecordHTTP(status int, d time.Duration) {
	b := current()
	l := Labels{"status": strconv.Itoa(status)}
	b.IncCounter(HTTPRequestsTotal, 1, l)
	b.ObserveHistogram(HTTPRequestDuration, d.Seconds(), l)
}
