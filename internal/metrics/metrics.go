package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// TokenRefreshes counts access token refresh attempts by trigger and outcome
	TokenRefreshes *prometheus.CounterVec
	// PipelineRejections counts proxy requests rejected before reaching eBay
	PipelineRejections *prometheus.CounterVec
	// ProxyCalls counts proxied eBay API calls
	ProxyCalls *prometheus.CounterVec
	// ProxyLatency tracks upstream eBay call latency
	ProxyLatency *prometheus.HistogramVec
	// LoginAttempts counts automated browser authorization attempts
	LoginAttempts *prometheus.CounterVec
	// AccountTokenTTL tracks seconds until each account's access token expires
	AccountTokenTTL *prometheus.GaugeVec
	// ActiveAPITokens tracks the number of active API tokens per environment
	ActiveAPITokens *prometheus.GaugeVec
	// RateLimitRemaining tracks remaining eBay call quota as reported upstream
	RateLimitRemaining *prometheus.GaugeVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// Refresh outcome label values
const (
	RefreshOutcomeRefreshed   = "refreshed"
	RefreshOutcomeAppFallback = "app_fallback"
	RefreshOutcomeReauth      = "reauth_required"
	RefreshOutcomeError       = "error"
)

// Refresh trigger label values
const (
	RefreshTriggerLazy      = "lazy"
	RefreshTriggerProactive = "proactive"
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of access token refresh attempts",
			},
			[]string{"trigger", "outcome"},
		),
		PipelineRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_rejections_total",
				Help:      "Proxy requests rejected before reaching eBay, by stage",
			},
			[]string{"stage"},
		),
		ProxyCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_calls_total",
				Help:      "Total number of proxied eBay API calls",
			},
			[]string{"account_id", "method", "status"},
		),
		ProxyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "proxy_latency_seconds",
				Help:      "Upstream eBay call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"account_id", "method"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Automated browser authorization attempts",
			},
			[]string{"outcome", "stage"},
		),
		AccountTokenTTL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "account_token_ttl_seconds",
				Help:      "Seconds until the account's access token expires",
			},
			[]string{"account_id", "environment"},
		),
		ActiveAPITokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_api_tokens",
				Help:      "Number of active API tokens",
			},
			[]string{"environment"},
		),
		RateLimitRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ebay_rate_limit_remaining",
				Help:      "Remaining eBay call quota as reported by upstream headers",
			},
			[]string{"account_id"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.ErrorCounter,
		m.TokenRefreshes,
		m.PipelineRejections,
		m.ProxyCalls,
		m.ProxyLatency,
		m.LoginAttempts,
		m.AccountTokenTTL,
		m.ActiveAPITokens,
		m.RateLimitRemaining,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint, method).Inc()
}

// RecordTokenRefresh records a token refresh attempt
func (m *Metrics) RecordTokenRefresh(trigger, outcome string) {
	m.TokenRefreshes.WithLabelValues(trigger, outcome).Inc()
}

// RecordPipelineRejection records a proxy request rejected at the given stage
func (m *Metrics) RecordPipelineRejection(stage string) {
	m.PipelineRejections.WithLabelValues(stage).Inc()
}

// RecordProxyCall records a proxied eBay API call
func (m *Metrics) RecordProxyCall(accountID, method, status string) {
	m.ProxyCalls.WithLabelValues(accountID, method, status).Inc()
}

// RecordProxyLatency records upstream eBay call latency
func (m *Metrics) RecordProxyLatency(accountID, method string, durationSeconds float64) {
	m.ProxyLatency.WithLabelValues(accountID, method).Observe(durationSeconds)
}

// RecordLoginAttempt records an automated browser authorization attempt
func (m *Metrics) RecordLoginAttempt(outcome, stage string) {
	m.LoginAttempts.WithLabelValues(outcome, stage).Inc()
}

// SetAccountTokenTTL sets the seconds until an account's access token expires
func (m *Metrics) SetAccountTokenTTL(accountID, environment string, seconds float64) {
	m.AccountTokenTTL.WithLabelValues(accountID, environment).Set(seconds)
}

// SetActiveAPITokens sets the number of active API tokens for an environment
func (m *Metrics) SetActiveAPITokens(environment string, count int) {
	m.ActiveAPITokens.WithLabelValues(environment).Set(float64(count))
}

// SetRateLimitRemaining sets the remaining eBay call quota for an account
func (m *Metrics) SetRateLimitRemaining(accountID string, remaining float64) {
	m.RateLimitRemaining.WithLabelValues(accountID).Set(remaining)
}
