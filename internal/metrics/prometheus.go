// Package metrics provides Prometheus metrics for the data API.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Provisioning outcomes
const (
	OutcomeCreated    = "created"
	OutcomeReconciled = "reconciled"
	OutcomeExists     = "exists"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInFlight   prometheus.Gauge
	responseSize       *prometheus.HistogramVec
	provisioningTotal  *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	storeOperations    *prometheus.CounterVec
	storeDuration      *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	healthStatus       prometheus.Gauge
}

var (
	globalMetrics *Metrics
	once          sync.Once
)

// NewMetrics creates and registers Prometheus metrics. Registration happens
// once per process.
func NewMetrics() *Metrics {
	once.Do(func() {
		globalMetrics = &Metrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ymts_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ymts_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				},
				[]string{"method", "path", "status"},
			),
			requestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ymts_http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),
			responseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ymts_http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
				},
				[]string{"method", "path"},
			),
			provisioningTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ymts_tenant_provisioning_total",
					Help: "Tenant provisioning attempts by outcome",
				},
				[]string{"outcome", "stage"},
			),
			validationFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ymts_record_validation_failures_total",
					Help: "Record batches rejected by validation",
				},
				[]string{"operation"},
			),
			storeOperations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ymts_store_operations_total",
					Help: "Document store operations by result",
				},
				[]string{"operation", "status"},
			),
			storeDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ymts_store_operation_duration_seconds",
					Help:    "Document store operation duration in seconds",
					Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				},
				[]string{"operation"},
			),
			cacheLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ymts_tenant_cache_lookups_total",
					Help: "Tenant cache lookups by result",
				},
				[]string{"result"},
			),
			healthStatus: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ymts_health_status",
					Help: "Health status of the API (1 = healthy, 0 = unhealthy)",
				},
			),
		}
	})

	return globalMetrics
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, path, status).Inc()
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the response size.
func (m *Metrics) RecordResponseSize(method, path string, size int) {
	if m == nil {
		return
	}
	m.responseSize.WithLabelValues(method, path).Observe(float64(size))
}

// IncRequestsInFlight increments the in-flight requests counter.
func (m *Metrics) IncRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter.
func (m *Metrics) DecRequestsInFlight() {
	if m == nil {
		return
	}
	m.requestsInFlight.Dec()
}

// RecordProvisioning records the outcome of a provisioning attempt. stage is
// empty unless the attempt failed part way.
func (m *Metrics) RecordProvisioning(outcome, stage string) {
	if m == nil {
		return
	}
	m.provisioningTotal.WithLabelValues(outcome, stage).Inc()
}

// RecordValidationFailure counts a rejected batch.
func (m *Metrics) RecordValidationFailure(operation string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(operation).Inc()
}

// RecordStoreOperation records a document store call.
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeOperations.WithLabelValues(operation, status).Inc()
	m.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup records a tenant cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, logger *zap.Logger) *MetricsServer {
	router := http.NewServeMux()
	router.Handle(path, promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics. Requests
// are labelled by route template so tenant ids do not become label values.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncRequestsInFlight()
			defer m.DecRequestsInFlight()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := routeTemplate(r)
			m.RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
			m.RecordResponseSize(r.Method, path, rw.size)
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// metricsResponseWriter wraps http.ResponseWriter to capture metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}
