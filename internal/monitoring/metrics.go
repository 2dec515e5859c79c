// Package monitoring exposes Prometheus metrics for fragment loads,
// cache behavior, protocol traffic, and live sessions.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors. It satisfies the Stats
// hooks of the loader and engine packages.
type Metrics struct {
	// Fragment loads
	LoadsTotal     *prometheus.CounterVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	// Protocol traffic
	InboundRequests  *prometheus.CounterVec
	OutboundRequests *prometheus.CounterVec

	// Sessions
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// System
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_fragment_loads_total",
				Help: "Total fragment load attempts by outcome",
			},
			[]string{"outcome"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apphost_fragment_cache_hits_total",
			Help: "Fragment cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apphost_fragment_cache_misses_total",
			Help: "Fragment cache misses",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apphost_fragment_cache_evictions_total",
			Help: "Fragment cache evictions",
		}),
		InboundRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_guest_requests_total",
				Help: "Guest-initiated requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		OutboundRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_host_requests_total",
				Help: "Host-initiated requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apphost_sessions_active",
			Help: "Currently attached fragment sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apphost_sessions_total",
			Help: "Fragment sessions opened since start",
		}),
		Uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apphost_uptime_seconds",
			Help: "Process uptime in seconds",
		}),
	}

	factory(m.LoadsTotal)
	factory(m.CacheHits)
	factory(m.CacheMisses)
	factory(m.CacheEvictions)
	factory(m.InboundRequests)
	factory(m.OutboundRequests)
	factory(m.SessionsActive)
	factory(m.SessionsTotal)
	factory(m.Uptime)

	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
	return m.registry
}

// RecordLoad counts one fragment load attempt.
func (m *Metrics) RecordLoad(outcome string) {
	m.LoadsTotal.WithLabelValues(outcome).Inc()
}

// CacheHit implements loader.Stats.
func (m *Metrics) CacheHit() { m.CacheHits.Inc() }

// CacheMiss implements loader.Stats.
func (m *Metrics) CacheMiss() { m.CacheMisses.Inc() }

// CacheEviction implements loader.Stats.
func (m *Metrics) CacheEviction() { m.CacheEvictions.Inc() }

// InboundRequest implements engine.Stats.
func (m *Metrics) InboundRequest(method, outcome string) {
	m.InboundRequests.WithLabelValues(method, outcome).Inc()
}

// OutboundRequest implements engine.Stats.
func (m *Metrics) OutboundRequest(method, outcome string) {
	m.OutboundRequests.WithLabelValues(method, outcome).Inc()
}

// SessionOpened tracks a new fragment session.
func (m *Metrics) SessionOpened() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed tracks a closed fragment session.
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
}
