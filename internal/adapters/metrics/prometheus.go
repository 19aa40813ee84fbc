// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	transformCounter    *prometheus.CounterVec
	transformDuration   *prometheus.HistogramVec
	points              *prometheus.CounterVec
	chainBuilds         *prometheus.CounterVec
	chainCache          *prometheus.CounterVec
	crsRegistered       prometheus.Gauge
	batchFiles          *prometheus.CounterVec
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector registered with
// the default registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWith creates a collector registered with reg.
func NewCollectorWith(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "geotrans"
	}
	factory := promauto.With(reg)

	return &Collector{
		transformCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transforms_total",
				Help:      "Total number of transform calls",
			},
			[]string{"source", "target", "status"},
		),

		transformDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_duration_seconds",
				Help:      "Transform duration in seconds",
				Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"source", "target"},
		),

		points: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_total",
				Help:      "Total number of transformed points",
			},
			[]string{"status"},
		),

		chainBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_builds_total",
				Help:      "Total number of built transformation chains",
			},
			[]string{"source", "target"},
		),

		chainCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_cache_lookups_total",
				Help:      "Chain cache lookups",
			},
			[]string{"result"},
		),

		crsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "crs_registered",
				Help:      "Number of registered CRS",
			},
		),

		batchFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_files_total",
				Help:      "Total number of processed batch files",
			},
			[]string{"status"},
		),

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncTransformCount increments the transform counter.
func (c *Collector) IncTransformCount(source, target string, success bool) {
	c.transformCounter.WithLabelValues(source, target, status(success)).Inc()
}

// ObserveTransformDuration records transform duration.
func (c *Collector) ObserveTransformDuration(source, target string, duration time.Duration) {
	c.transformDuration.WithLabelValues(source, target).Observe(duration.Seconds())
}

// AddPoints adds to the point counters.
func (c *Collector) AddPoints(transformed, failed int) {
	if transformed > 0 {
		c.points.WithLabelValues("success").Add(float64(transformed))
	}
	if failed > 0 {
		c.points.WithLabelValues("error").Add(float64(failed))
	}
}

// IncChainBuilds increments the chain build counter.
func (c *Collector) IncChainBuilds(source, target string) {
	c.chainBuilds.WithLabelValues(source, target).Inc()
}

// IncChainCache counts a chain cache lookup.
func (c *Collector) IncChainCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	c.chainCache.WithLabelValues(result).Inc()
}

// SetCRSRegistered sets the number of registered CRS.
func (c *Collector) SetCRSRegistered(count int) {
	c.crsRegistered.Set(float64(count))
}

// IncBatchFiles increments the batch file counter.
func (c *Collector) IncBatchFiles(success bool) {
	c.batchFiles.WithLabelValues(status(success)).Inc()
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, status(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		c.IncHTTPRequests(r.Method, path, statusToString(wrapped.statusCode))
		c.ObserveHTTPDuration(r.Method, path, time.Since(start))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath replaces CRS codes in API paths with a placeholder to keep
// label cardinality bounded.
func normalizePath(path string) string {
	const prefix = "/api/v1/crs/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if strings.HasSuffix(rest, "/domain") {
		return prefix + "{code}/domain"
	}
	return prefix + "{code}"
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
