package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Enrollment lifecycle outcomes recorded by MetricsService.
const (
	OutcomeSeated     = "seated"
	OutcomeWaitlisted = "waitlisted"
	OutcomePromoted   = "promoted"
	OutcomeApproved   = "approved"
	OutcomeRejected   = "rejected"
	OutcomeDropped    = "dropped"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheLookups     *prometheus.CounterVec
	enrollments      *prometheus.CounterVec
	paymentsCreated  *prometheus.CounterVec
	paymentsOverdue  prometheus.Counter
	contactSubmitted *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups partitioned by result",
	}, []string{"result"})

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_enrollments_total",
		Help: "Enrollment lifecycle transitions partitioned by outcome",
	}, []string{"outcome"})

	paymentsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_payments_created_total",
		Help: "Payments created partitioned by origin",
	}, []string{"origin"})

	paymentsOverdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_payments_marked_overdue_total",
		Help: "Payments moved to overdue by the sweep",
	})

	contactSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_contact_submissions_total",
		Help: "Contact form submissions partitioned by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		enrollments, paymentsCreated, paymentsOverdue, contactSubmitted, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheLookups:     cacheLookups,
		enrollments:      enrollments,
		paymentsCreated:  paymentsCreated,
		paymentsOverdue:  paymentsOverdue,
		contactSubmitted: contactSubmitted,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup result.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollment counts an enrollment lifecycle transition.
func (m *MetricsService) RecordEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

// RecordPaymentCreated counts a new payment by origin (enrollment or manual).
func (m *MetricsService) RecordPaymentCreated(origin string) {
	if m == nil {
		return
	}
	m.paymentsCreated.WithLabelValues(origin).Inc()
}

// RecordOverdue counts payments flipped to overdue.
func (m *MetricsService) RecordOverdue(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.paymentsOverdue.Add(float64(n))
}

// RecordContact counts a contact submission result.
func (m *MetricsService) RecordContact(result string) {
	if m == nil {
		return
	}
	m.contactSubmitted.WithLabelValues(result).Inc()
}
