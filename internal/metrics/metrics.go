// Package metrics exposes Prometheus metrics for the embedding server.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns an isolated registry and the server's collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	embedTotal      *prometheus.CounterVec
	embedDuration   prometheus.Histogram
}

// New creates Metrics with Go and process collectors. Every metric carries a
// constant service label.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry)

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		embedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embeddings_total",
			Help: "Encodes run by the resident model, by result.",
		}, []string{"result"}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "embedding_duration_seconds",
			Help:    "Time spent in the model per encode.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	wrapped.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		m.embedTotal,
		m.embedDuration,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency, labelled by chi route
// pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// TextEmbedder encodes one text into a vector.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// InstrumentedEmbedder records encode counts and latency around a TextEmbedder.
type InstrumentedEmbedder struct {
	next    TextEmbedder
	metrics *Metrics
}

// Instrument wraps next so every encode is observed.
func (m *Metrics) Instrument(next TextEmbedder) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{next: next, metrics: m}
}

// EmbedText encodes text and records the outcome.
func (e *InstrumentedEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	vec, err := e.next.EmbedText(ctx, text)
	e.metrics.embedDuration.Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "error"
	}
	e.metrics.embedTotal.WithLabelValues(result).Inc()
	return vec, err
}
