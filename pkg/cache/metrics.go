package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sitekit/metric"
)

type cacheMetrics struct {
	ops  *prometheus.CounterVec
	size prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, name string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sitekit",
			Subsystem:   "cache",
			Name:        "operations_total",
			ConstLabels: prometheus.Labels{"cache": name},
			Help:        "Cache operations by kind (hit, miss, set, delete, evict)",
		}, []string{"op"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sitekit",
			Subsystem:   "cache",
			Name:        "entries",
			ConstLabels: prometheus.Labels{"cache": name},
			Help:        "Current number of entries in cache",
		}),
	}

	if err := registry.RegisterCounterVec(name, "cache_operations", m.ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "cache_entries", m.size); err != nil {
		registry.Unregister(name, "cache_operations")
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) record(op string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op).Inc()
}

func (m *cacheMetrics) updateSize(size int) {
	if m == nil {
		return
	}
	m.size.Set(float64(size))
}
