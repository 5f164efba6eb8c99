package cache

import (
	"github.com/c360/sitekit/metric"
)

// Option configures cache behavior.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]
}

// WithMetrics exports the cache's activity to registry under the given name.
// A nil registry or empty name leaves metrics disabled.
func WithMetrics[V any](registry *metric.MetricsRegistry, name string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && name != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = name
		}
	}
}

// WithEvictionCallback sets a callback invoked for every entry leaving the cache.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
