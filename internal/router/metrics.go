package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the background daemon.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsClients       prometheus.Gauge
	rateLimited     prometheus.Counter
	upstreamFetches *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	sessionEntries  prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "extraneous",
			Name:      "requests_total",
			Help:      "Protocol requests handled, by request type and response type",
		}, []string{"request", "response"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "extraneous",
			Name:      "request_duration_seconds",
			Help:      "Histogram of protocol request handling durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "extraneous",
			Name:      "channel_clients",
			Help:      "Currently connected channel clients",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "extraneous",
			Name:      "http_rate_limited_total",
			Help:      "HTTP requests rejected due to rate limiting",
		}),
		upstreamFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "extraneous",
			Name:      "upstream_fetches_total",
			Help:      "Upstream DeArrow service calls, by service and outcome",
		}, []string{"service", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "extraneous",
			Name:      "session_cache_lookups_total",
			Help:      "Session cache lookups, by result",
		}, []string{"result"}),
		sessionEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "extraneous",
			Name:      "session_cache_entries",
			Help:      "Current session cache entry count",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.wsClients,
		m.rateLimited,
		m.upstreamFetches,
		m.cacheLookups,
		m.sessionEntries,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a handled protocol request.
func (m *Metrics) ObserveRequest(requestType, responseType string, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(requestType, responseType).Inc()
	m.requestDuration.WithLabelValues(requestType).Observe(dur.Seconds())
}

// IncChannelClients adjusts the connected-client gauge by delta.
func (m *Metrics) IncChannelClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

// IncRateLimited increments the rate limit counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// CacheLookup implements dearrow.Observer.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// UpstreamFetch implements dearrow.Observer.
func (m *Metrics) UpstreamFetch(service, outcome string) {
	if m == nil {
		return
	}
	m.upstreamFetches.WithLabelValues(service, outcome).Inc()
}

// SetSessionEntries records the session cache size.
func (m *Metrics) SetSessionEntries(n int) {
	if m == nil {
		return
	}
	m.sessionEntries.Set(float64(n))
}

