package merge

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/datastore"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/page"
)

// Configuration is the merged data a component renders with. It belongs to
// the render call that computed it.
type Configuration map[string]any

// Visible reports whether the configuration allows rendering.
func (c Configuration) Visible() bool {
	return component.Visible(c)
}

// Request identifies the component instance being rendered.
type Request struct {
	TypeID        string
	InstanceID    string
	ComponentName string
	PageSlug      string
	Tenant        *page.TenantBlob
	Props         map[string]any
}

// Engine gathers the five layers of a component and merges them.
type Engine struct {
	registry *component.Registry
	store    *datastore.Store
	logger   *slog.Logger
	metrics  *metric.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records merge durations per type.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// NewEngine creates a merge engine. store may be nil, in which case the
// snapshot and current layers are empty.
func NewEngine(registry *component.Registry, store *datastore.Store, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		logger:   slog.Default().With("component", "merge"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge computes the configuration for req. It never fails; absent layers
// contribute nothing.
func (e *Engine) Merge(ctx context.Context, req Request) Configuration {
	start := time.Now()
	defaults := e.defaults(req.TypeID)
	layers := e.Layers(req, defaults)
	deepKeys := e.DeepKeys(req.TypeID, defaults)

	cfg := Configuration(MergeConfiguration(layers, deepKeys))

	e.metrics.RecordMergeDuration(req.TypeID, time.Since(start))
	e.logger.DebugContext(ctx, "Merged configuration",
		"type", req.TypeID, "id", req.InstanceID, "page", req.PageSlug, "keys", len(cfg))
	return cfg
}

// Layers returns the five layers of req in precedence order, lowest first.
// defaults is the first layer; pass nil to use the registry's.
func (e *Engine) Layers(req Request, defaults map[string]any) []map[string]any {
	if defaults == nil {
		defaults = e.defaults(req.TypeID)
	}

	var tenant, snapshot, current map[string]any
	if data, ok := req.Tenant.Lookup(req.PageSlug, req.TypeID, req.ComponentName, req.InstanceID); ok {
		tenant = data
	}
	if e.store != nil {
		snapshot, _ = e.store.Snapshot(req.TypeID, req.InstanceID)
		current, _ = e.store.Current(req.TypeID, req.InstanceID)
	}
	return []map[string]any{defaults, tenant, snapshot, current, req.Props}
}

// DeepKeys returns the keys merged recursively for typeID: the descriptor's
// declared keys plus every default-data key holding an object.
func (e *Engine) DeepKeys(typeID string, defaults map[string]any) []string {
	keys := make(map[string]struct{})
	if e.registry != nil {
		if d, ok := e.registry.Describe(typeID); ok {
			for _, k := range d.DeepMergeKeys {
				keys[k] = struct{}{}
			}
		}
	}
	for k, v := range defaults {
		if _, ok := v.(map[string]any); ok {
			keys[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(keys))
}

func (e *Engine) defaults(typeID string) map[string]any {
	if e.registry == nil {
		return map[string]any{}
	}
	return e.registry.DefaultData(typeID)
}
