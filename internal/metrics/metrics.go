// Package metrics exposes the relay's Prometheus instrumentation.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wrurelay"

// Metrics bundles the relay counters. All methods are nil-safe so call sites
// need no guards when metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry

	recordsReceived prometheus.Counter
	outcomes        *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	resolveDuration prometheus.Histogram
	emitDuration    prometheus.Histogram
}

// New builds a Metrics with its own registry, pre-registering the standard
// process and Go collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		recordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_received_total",
			Help:      "Draft records received across all invocations.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_outcomes_total",
			Help:      "Per-record outcomes by status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_cache_hits_total",
			Help:      "Schema definitions served from the in-process cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_cache_misses_total",
			Help:      "Schema lookups that had to hit the registry.",
		}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_resolve_duration_seconds",
			Help:      "Latency of schema resolution including cache hits.",
			Buckets:   prometheus.DefBuckets,
		}),
		emitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "emit_duration_seconds",
			Help:      "Latency of bus publishes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(
		m.recordsReceived, m.outcomes,
		m.cacheHits, m.cacheMisses,
		m.resolveDuration, m.emitDuration,
	)
	return m
}

func (m *Metrics) RecordsReceived(n int) {
	if m == nil {
		return
	}
	m.recordsReceived.Add(float64(n))
}

func (m *Metrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) SchemaCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) SchemaCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveEmit(d time.Duration) {
	if m == nil {
		return
	}
	m.emitDuration.Observe(d.Seconds())
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on the given port until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, port int, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", "error", err)
	}
}
