package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitekit"

// Metrics contains the platform-level collectors. Every Record method is
// safe to call on a nil *Metrics so components can run without a registry.
type Metrics struct {
	ComponentResolutions *prometheus.CounterVec
	ComponentFallbacks   *prometheus.CounterVec
	ResolverCacheSize    prometheus.Gauge
	MergeDuration        *prometheus.HistogramVec
	Normalizations       *prometheus.CounterVec
	PageSaves            *prometheus.CounterVec
	StoreDeltas          *prometheus.CounterVec
	LiveSessions         prometheus.Gauge
	HTTPRequests         *prometheus.CounterVec

	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolutions_total",
				Help:      "Component resolutions by outcome (hit, loaded, fallback, pending)",
			},
			[]string{"outcome"},
		),

		ComponentFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "fallbacks_total",
				Help:      "Fallback placeholders produced by kind",
			},
			[]string{"kind"},
		),

		ResolverCacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "cache_entries",
				Help:      "Resolved implementations currently cached",
			},
		),

		MergeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "merge",
				Name:      "duration_seconds",
				Help:      "Time spent computing a merged component configuration",
				Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
			},
			[]string{"type"},
		),

		Normalizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "normalizer",
				Name:      "records_total",
				Help:      "Persisted records normalized, labelled by the strategy that decided the type",
			},
			[]string{"strategy"},
		),

		PageSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "editor",
				Name:      "saves_total",
				Help:      "Page saves by status",
			},
			[]string{"status"},
		),

		StoreDeltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "datastore",
				Name:      "deltas_total",
				Help:      "Store mutations by operation",
			},
			[]string{"op"},
		),

		LiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "editor",
				Name:      "live_connections",
				Help:      "Open live-update websocket connections",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Editor API requests by route and status code",
			},
			[]string{"route", "code"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (c *Metrics) mustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		c.ComponentResolutions,
		c.ComponentFallbacks,
		c.ResolverCacheSize,
		c.MergeDuration,
		c.Normalizations,
		c.PageSaves,
		c.StoreDeltas,
		c.LiveSessions,
		c.HTTPRequests,
		c.NATSConnected,
		c.NATSReconnects,
	)
}

// RecordResolution counts one resolver outcome and the resulting cache size.
func (c *Metrics) RecordResolution(outcome string, cacheSize int) {
	if c == nil {
		return
	}
	c.ComponentResolutions.WithLabelValues(outcome).Inc()
	c.ResolverCacheSize.Set(float64(cacheSize))
}

// RecordFallback counts a fallback placeholder
func (c *Metrics) RecordFallback(kind string) {
	if c == nil {
		return
	}
	c.ComponentFallbacks.WithLabelValues(kind).Inc()
}

// RecordMergeDuration records merge time
func (c *Metrics) RecordMergeDuration(typeID string, d time.Duration) {
	if c == nil {
		return
	}
	c.MergeDuration.WithLabelValues(typeID).Observe(d.Seconds())
}

// RecordNormalization counts a normalized record
func (c *Metrics) RecordNormalization(strategy string) {
	if c == nil {
		return
	}
	c.Normalizations.WithLabelValues(strategy).Inc()
}

// RecordSave counts a page save
func (c *Metrics) RecordSave(status string) {
	if c == nil {
		return
	}
	c.PageSaves.WithLabelValues(status).Inc()
}

// RecordDelta counts a store mutation
func (c *Metrics) RecordDelta(op string) {
	if c == nil {
		return
	}
	c.StoreDeltas.WithLabelValues(op).Inc()
}

// RecordLiveConnection adjusts the live connection gauge by delta
func (c *Metrics) RecordLiveConnection(delta int) {
	if c == nil {
		return
	}
	c.LiveSessions.Add(float64(delta))
}

// RecordHTTPRequest counts an API request
func (c *Metrics) RecordHTTPRequest(route, code string) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, code).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	if c == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	if c == nil {
		return
	}
	c.NATSReconnects.Inc()
}
