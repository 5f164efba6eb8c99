package component

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/pkg/cache"
)

// genericSubPath is used to build the attempted path of components whose
// section or type is not registered.
const genericSubPath = "hero"

// Resolution outcomes reported to metrics.
const (
	outcomeHit      = "hit"
	outcomeLoaded   = "loaded"
	outcomeFallback = "fallback"
	outcomePending  = "pending"
)

// Resolver maps (section, componentName) pairs to implementations and caches
// the answer, fallbacks included, for the life of the cache.
type Resolver struct {
	registry    *Registry
	cache       cache.Cache[Renderable]
	fallbacks   *FallbackFactory
	flight      singleflight.Group
	loadTimeout time.Duration
	logger      *slog.Logger
	metrics     *metric.Metrics
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverMetrics reports resolutions and fallbacks to metrics.
func WithResolverMetrics(metrics *metric.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
		r.fallbacks = NewFallbackFactory(metrics)
	}
}

// WithLoadTimeout bounds a single loader call. Zero means only the caller's
// context bounds it.
func WithLoadTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.loadTimeout = d
	}
}

// NewResolver creates a resolver over registry. A nil cache selects an
// unbounded simple cache.
func NewResolver(registry *Registry, c cache.Cache[Renderable], opts ...ResolverOption) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("resolver requires a registry")
	}
	if c == nil {
		var err error
		if c, err = cache.NewSimple[Renderable](); err != nil {
			return nil, err
		}
	}

	r := &Resolver{
		registry:  registry,
		cache:     c,
		fallbacks: NewFallbackFactory(nil),
		logger:    slog.Default().With("component", "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func cacheKey(section, componentName string) string {
	return section + "/" + componentName
}

// Resolve returns the implementation for componentName in section. It never
// fails: unknown names, unknown sections and loader errors all produce a
// cached Fallback. If ctx ends while the loader is still running, a pending
// placeholder is returned and nothing is cached, so a later call retries.
func (r *Resolver) Resolve(ctx context.Context, section, componentName string) Renderable {
	key := cacheKey(section, componentName)
	if impl, ok := r.cache.Get(key); ok {
		r.metrics.RecordResolution(outcomeHit, r.cache.Size())
		return impl
	}

	ch := r.flight.DoChan(key, func() (any, error) {
		if impl, ok := r.cache.Get(key); ok {
			return impl, nil
		}
		impl, cacheable := r.load(context.WithoutCancel(ctx), section, componentName)
		if cacheable {
			if _, err := r.cache.Set(key, impl); err != nil {
				r.logger.Warn("Failed to cache resolved component", "key", key, "error", err)
			}
		}
		return impl, nil
	})

	select {
	case res := <-ch:
		impl := res.Val.(Renderable)
		outcome := outcomeLoaded
		if fb, ok := impl.(*Fallback); ok {
			outcome = outcomeFallback
			if fb.Kind == FallbackPending {
				outcome = outcomePending
			}
		}
		r.metrics.RecordResolution(outcome, r.cache.Size())
		return impl
	case <-ctx.Done():
		r.logger.Debug("Resolution abandoned while loading", "key", key, "error", ctx.Err())
		r.metrics.RecordResolution(outcomePending, r.cache.Size())
		return r.fallbacks.Pending(componentName, "")
	}
}

// load performs the uncached resolution. The boolean is false when the
// result must not be cached.
func (r *Resolver) load(ctx context.Context, section, componentName string) (Renderable, bool) {
	parsed, err := ParseName(componentName)
	if err != nil {
		r.logger.Debug("Unparseable component name", "name", componentName, "error", err)
		return r.fallbacks.UnknownType(componentName, componentName, genericSubPath+"/"+componentName), true
	}

	if !r.registry.IsValidSection(section) {
		return r.fallbacks.UnknownType(parsed.BaseType, componentName, genericSubPath+"/"+componentName), true
	}

	desc, ok := r.registry.Describe(parsed.BaseType)
	if !ok {
		return r.fallbacks.UnknownType(parsed.BaseType, componentName, genericSubPath+"/"+componentName), true
	}

	path := desc.StorageSubPath + "/" + parsed.String()
	loader, ok := r.registry.Loader(desc.TypeID)
	if !ok {
		r.logger.Warn("No loader registered", "type", desc.TypeID, "path", path)
		return r.fallbacks.LoadFailed(desc.DisplayName, componentName, path, nil), true
	}

	if r.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.loadTimeout)
		defer cancel()
	}

	impl, err := loader(ctx, parsed)
	switch {
	case err != nil && ctx.Err() != nil:
		r.logger.Warn("Component load timed out", "path", path, "error", err)
		return r.fallbacks.Pending(componentName, path), false
	case err != nil:
		r.logger.Warn("Component load failed", "path", path, "error", err)
		return r.fallbacks.LoadFailed(desc.DisplayName, componentName, path, nil), true
	case impl == nil:
		return r.fallbacks.LoadFailed(desc.DisplayName, componentName, path, nil), true
	}
	return impl, true
}

// CacheSize reports how many resolutions are cached.
func (r *Resolver) CacheSize() int {
	return r.cache.Size()
}

// Reset empties the resolution cache.
func (r *Resolver) Reset() error {
	return r.cache.Clear()
}
