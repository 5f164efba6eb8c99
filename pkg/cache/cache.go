// Package cache provides the generic, thread-safe caches sitekit keeps
// long-lived objects in: resolved component implementations and editor
// sessions.
//
// Three implementations are available:
//   - simple: no eviction, entries live until deleted or cleared
//   - lru: bounded by entry count, least recently used entry evicted first
//   - noop: caching disabled, every Get misses
//
// Every cache keeps Statistics; Prometheus export is opt-in via WithMetrics.
package cache

import (
	"github.com/c360/sitekit/errors"
)

// Cache is the interface all implementations satisfy, parameterized by value type.
type Cache[V any] interface {
	// Get returns the value and true on a hit.
	Get(key string) (V, bool)

	// Set stores a value and reports whether a new entry was created.
	Set(key string, value V) (bool, error)

	// Delete removes an entry and reports whether it existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys currently cached.
	Keys() []string

	// Stats returns cache statistics, nil for the noop cache.
	Stats() *Statistics

	// Close releases resources held by the cache.
	Close() error
}

// EvictCallback is called when an entry leaves the cache through Delete,
// Clear or capacity eviction.
type EvictCallback[V any] func(key string, value V)

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// observer bundles the bookkeeping shared by every implementation.
type observer[V any] struct {
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

func newObserver[V any](opts *cacheOptions[V], constructor string) (observer[V], error) {
	o := observer[V]{stats: NewStatistics(), evictFn: opts.evictCallback}
	if opts.metricsReg != nil {
		m, err := newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return o, errors.WrapTransient(err, "cache", constructor, "metrics registration")
		}
		o.metrics = m
	}
	return o, nil
}

func (o observer[V]) hit() {
	o.stats.Hit()
	o.metrics.record("hit")
}

func (o observer[V]) miss() {
	o.stats.Miss()
	o.metrics.record("miss")
}

func (o observer[V]) set(size int) {
	o.stats.Set()
	o.stats.UpdateSize(int64(size))
	o.metrics.record("set")
	o.metrics.updateSize(size)
}

func (o observer[V]) deleted(size int) {
	o.stats.Delete()
	o.stats.UpdateSize(int64(size))
	o.metrics.record("delete")
	o.metrics.updateSize(size)
}

func (o observer[V]) evicted(size int) {
	o.stats.Eviction()
	o.stats.UpdateSize(int64(size))
	o.metrics.record("evict")
	o.metrics.updateSize(size)
}

func (o observer[V]) cleared() {
	o.stats.UpdateSize(0)
	o.metrics.updateSize(0)
}

func (o observer[V]) notify(key string, value V) {
	if o.evictFn != nil {
		o.evictFn(key, value)
	}
}
