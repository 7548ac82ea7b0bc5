package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/folioworks/folio/pkg/signature"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Identity resolution metrics
	AuthResolutionsTotal *prometheus.CounterVec

	// Signature protocol metrics
	SignatureVerificationsTotal *prometheus.CounterVec

	// Policy metrics
	PolicyDecisionsTotal *prometheus.CounterVec

	// Store metrics
	StoreQueriesTotal   *prometheus.CounterVec
	StoreQueryDuration  *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_auth_resolutions_total",
				Help: "Identity resolutions by credential kind and outcome",
			},
			[]string{"method", "outcome"},
		),
		SignatureVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_signature_verifications_total",
				Help: "Signature verifications by outcome reason",
			},
			[]string{"outcome"},
		),
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_policy_decisions_total",
				Help: "Policy decisions by resource, operation and decision kind",
			},
			[]string{"resource", "operation", "decision"},
		),
		StoreQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_store_queries_total",
				Help: "Document store queries by collection and status",
			},
			[]string{"collection", "status"},
		),
		StoreQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_store_query_duration_seconds",
				Help:    "Document store query latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "folio_db_connections_active",
				Help: "Active database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthResolutionsTotal,
		m.SignatureVerificationsTotal,
		m.PolicyDecisionsTotal,
		m.StoreQueriesTotal,
		m.StoreQueryDuration,
		m.DBConnectionsActive,
	)

	return m
}

// ObserveSignatureVerification records a verification outcome
func (m *Metrics) ObserveSignatureVerification(result signature.Result) {
	outcome := "success"
	if !result.OK {
		outcome = string(result.Reason)
	}
	m.SignatureVerificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStoreQuery records one document store call
func (m *Metrics) ObserveStoreQuery(collection, status string, elapsed time.Duration) {
	m.StoreQueriesTotal.WithLabelValues(collection, status).Inc()
	m.StoreQueryDuration.WithLabelValues(collection).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus scrape endpoint for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments handlers with request count and latency
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
