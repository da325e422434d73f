// Package observability holds the Prometheus registry shared by the HTTP
// layer, the optimistic stores and the resolver.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// Metrics collects the application's Prometheus metrics. It implements
// optimistic.Observer and resolver.Observer.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rollbacks       *prometheus.CounterVec
	invalidations   *prometheus.CounterVec
	busy            *prometheus.CounterVec
	staleSearches   *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerdesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerdesk_optimistic_rollbacks_total",
		Help: "Optimistic mutations rolled back after a backend failure.",
	}, []string{"collection", "op"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerdesk_cache_invalidations_total",
		Help: "Collection caches dropped after a failed update.",
	}, []string{"collection"})
	busy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerdesk_optimistic_busy_total",
		Help: "Mutations rejected because another was in flight.",
	}, []string{"collection"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerdesk_resolver_stale_results_total",
		Help: "Lookup results discarded because a newer search superseded them.",
	}, []string{"entity"})
	registry.MustRegister(
		requests, duration, rollbacks, invalidations, busy, stale,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		rollbacks:       rollbacks,
		invalidations:   invalidations,
		busy:            busy,
		staleSearches:   stale,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for component-specific collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Rollback counts a rolled back optimistic mutation.
func (m *Metrics) Rollback(collection, op string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(collection, op).Inc()
}

// Invalidated counts a dropped collection cache.
func (m *Metrics) Invalidated(collection string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(collection).Inc()
}

// Busy counts a rejected concurrent mutation.
func (m *Metrics) Busy(collection string) {
	if m == nil {
		return
	}
	m.busy.WithLabelValues(collection).Inc()
}

// StaleDiscarded counts a superseded lookup result.
func (m *Metrics) StaleDiscarded(entity backend.EntityType) {
	if m == nil {
		return
	}
	m.staleSearches.WithLabelValues(string(entity)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
