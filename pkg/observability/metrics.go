package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Cache metrics (tier is "l1" or "l2")
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheErrorsTotal *prometheus.CounterVec

	// Tenant resolution metrics
	TenantResolutionsTotal *prometheus.CounterVec

	// Token metrics
	TokenVerificationsTotal *prometheus.CounterVec
	KeyRotationsTotal       *prometheus.CounterVec

	// MFA metrics
	MFAChallengesTotal *prometheus.CounterVec

	// Isolation metrics
	IsolationViolationsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identityd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_cache_hits_total",
				Help: "Total number of cache hits per tier",
			},
			[]string{"tier", "namespace"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_cache_misses_total",
				Help: "Total number of cache misses per tier",
			},
			[]string{"tier", "namespace"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_cache_errors_total",
				Help: "Total number of cache store errors (treated as misses)",
			},
			[]string{"tier", "operation"},
		),
		TenantResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_tenant_resolutions_total",
				Help: "Total number of tenant resolutions by outcome",
			},
			[]string{"outcome"},
		),
		TokenVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_token_verifications_total",
				Help: "Total number of token verifications by class and outcome",
			},
			[]string{"class", "outcome"},
		),
		KeyRotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_key_rotations_total",
				Help: "Total number of signing key rotations by class",
			},
			[]string{"class"},
		),
		MFAChallengesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_mfa_challenges_total",
				Help: "Total number of MFA challenge operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		IsolationViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identityd_isolation_violations_total",
				Help: "Total number of tenant isolation violations by type",
			},
			[]string{"type"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "identityd_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "identityd_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.TenantResolutionsTotal,
		m.TokenVerificationsTotal,
		m.KeyRotationsTotal,
		m.MFAChallengesTotal,
		m.IsolationViolationsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the Prometheus metrics HTTP handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics under a fixed
// path label.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// HTTPMiddleware records request counts and latency for every matched route.
// Registered via mux's Router.Use, it labels by the route template (e.g.
// /ops/tenants/{tenantId}) so path parameters do not explode the label set.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil && tmpl != "" {
				path = tmpl
			}
		}
		m.InstrumentHandler(path, next).ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
