// Package setup selects and installs the process metrics backend from
// configuration. Both binaries call Init once at startup and the returned
// cleanup at exit.
package setup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fiscaletl/internal/config"
	"fiscaletl/internal/metrics"
	"fiscaletl/internal/metrics/datadog"
	"fiscaletl/internal/metrics/prompush"
)

// Logger receives flush and close failures.
type Logger interface {
	Printf(format string, v ...any)
}

// closingBackend is a backend with its own flush loop.
type closingBackend interface {
	metrics.Backend
	Close() error
}

// Seams replaced in tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (closingBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url)
	}
	setBackend = metrics.SetBackend
)

// Init installs the backend named by cfg.Backend:
//   - "", "none", "noop": metrics stay disabled.
//   - "pushgateway", "prom": Prometheus push gateway, pushed every
//     cfg.FlushEvery (when > 0) and once more at cleanup.
//   - "datadog", "dd": Datadog API, flushed by the backend itself.
//
// The returned cleanup is never nil and is safe to call once even when err
// is non-nil.
func Init(ctx context.Context, cfg config.Metrics, log Logger) (func(), error) {
	nop := func() {}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none", "noop":
		return nop, nil

	case "pushgateway", "prom":
		url := cfg.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err := newPushBackend(cfg.Job, url)
		if err != nil {
			return nop, fmt.Errorf("metrics: pushgateway: %w", err)
		}
		setBackend(b)
		log.Printf("metrics: backend=pushgateway url=%s job=%s", url, cfg.Job)

		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			if cfg.FlushEvery <= 0 {
				<-stop
				return
			}
			t := time.NewTicker(cfg.FlushEvery)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					if err := b.Flush(); err != nil {
						log.Printf("metrics: pushgateway flush error: %v", err)
					}
				case <-stop:
					return
				}
			}
		}()
		return func() {
			close(stop)
			<-done
			if err := b.Flush(); err != nil {
				log.Printf("metrics: pushgateway flush error: %v", err)
			}
			setBackend(nil)
		}, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       cfg.Tags,
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			return nop, fmt.Errorf("metrics: datadog: %w", err)
		}
		setBackend(b)
		log.Printf("metrics: backend=datadog job=%s tags=%v", cfg.Job, cfg.Tags)
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close error: %v", err)
			}
			setBackend(nil)
		}, nil

	default:
		return nop, fmt.Errorf("metrics: unknown metrics backend %q (want none|datadog|pushgateway)", cfg.Backend)
	}
}
