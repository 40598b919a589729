package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Permission decision metrics
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	DenialsTotal     *prometheus.CounterVec

	// Decision cache metrics
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec
	CacheInvalidations    *prometheus.CounterVec
	CacheCorruptionsTotal prometheus.Counter
	CacheEntries          prometheus.Gauge

	// Response shaping metrics
	TruncationsTotal *prometheus.CounterVec
	RedactionsTotal  *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Identity metrics
	SnapshotLoadsTotal    *prometheus.CounterVec
	InvalidationBusEvents *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskgrid_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_authz_decisions_total",
				Help: "Total number of permission decisions",
			},
			[]string{"resource", "action", "reason"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskgrid_authz_decision_duration_seconds",
				Help:    "Permission decision computation duration in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"resource", "action"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_authz_denials_total",
				Help: "Total number of denied permission checks",
			},
			[]string{"resource", "action", "reason"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_decision_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
			[]string{"resource"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_decision_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
			[]string{"resource"},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_decision_cache_invalidations_total",
				Help: "Total number of targeted cache invalidations",
			},
			[]string{"source"},
		),
		CacheCorruptionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskgrid_decision_cache_corruptions_total",
				Help: "Total number of cached decisions evicted for failing the shape check",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_decision_cache_entries",
				Help: "Current number of cached decisions",
			},
		),

		TruncationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_shaping_truncations_total",
				Help: "Total number of collections truncated to a quota cap",
			},
			[]string{"resource", "tier"},
		),
		RedactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_shaping_redactions_total",
				Help: "Total number of items with fields redacted by scope",
			},
			[]string{"resource", "scope"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskgrid_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		SnapshotLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_identity_snapshot_loads_total",
				Help: "Total number of principal snapshot loads",
			},
			[]string{"status"},
		),
		InvalidationBusEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskgrid_identity_invalidation_events_total",
				Help: "Total number of invalidation bus events",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.DenialsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidations,
		m.CacheCorruptionsTotal,
		m.CacheEntries,
		m.TruncationsTotal,
		m.RedactionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.SnapshotLoadsTotal,
		m.InvalidationBusEvents,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
