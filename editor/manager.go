package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/datastore"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/merge"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/page"
	"github.com/c360/sitekit/pkg/cache"
	"github.com/c360/sitekit/tenantstore"
)

// Publisher sends delta notifications to other processes.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Dependencies holds what a Manager needs to build sessions.
type Dependencies struct {
	Registry *component.Registry
	Resolver *component.Resolver
	Store    tenantstore.Store
	Metrics  *metric.MetricsRegistry
	Logger   *slog.Logger
}

// Manager creates and caches tenant sessions.
type Manager struct {
	deps       Dependencies
	normalizer *component.Normalizer
	sessions   cache.Cache[*Session]
	flight     singleflight.Group
	logger     *slog.Logger
	metrics    *metric.Metrics

	publisher     Publisher
	deltaSubject  string
	forwardBuffer int
}

// Option configures a Manager.
type Option func(*Manager)

// WithDeltaPublisher forwards every session delta to subject + "." + tenant.
func WithDeltaPublisher(p Publisher, subject string) Option {
	return func(m *Manager) {
		m.publisher = p
		m.deltaSubject = subject
	}
}

// NewManager creates a manager. sessionCache selects how many tenant
// sessions stay in memory; a disabled cache falls back to an unbounded one
// since edits live in the session until saved.
func NewManager(deps Dependencies, sessionCache cache.Config, opts ...Option) (*Manager, error) {
	if deps.Registry == nil || deps.Resolver == nil || deps.Store == nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: registry, resolver and store are required", errors.ErrMissingConfig),
			"Manager", "NewManager", "dependency validation")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		deps:          deps,
		logger:        logger.With("component", "editor"),
		metrics:       deps.Metrics.CoreMetrics(),
		forwardBuffer: 64,
	}
	m.normalizer = component.NewNormalizer(deps.Registry, m.logger, m.metrics)
	for _, opt := range opts {
		opt(m)
	}

	if !sessionCache.Enabled {
		sessionCache = cache.DefaultConfig()
	}
	cacheOpts := []cache.Option[*Session]{
		cache.WithEvictionCallback(func(tenantID string, s *Session) {
			m.logger.Info("Evicted editor session", "tenant", tenantID)
			s.close()
		}),
	}
	if deps.Metrics != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[*Session](deps.Metrics, "editor_sessions"))
	}
	sessions, err := cache.NewFromConfig[*Session](sessionCache, cacheOpts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "Manager", "NewManager", "session cache")
	}
	m.sessions = sessions
	return m, nil
}

// Session returns the tenant's session, loading the tenant document on
// first use. Concurrent first uses share one load.
func (m *Manager) Session(ctx context.Context, tenantID string) (*Session, error) {
	if s, ok := m.sessions.Get(tenantID); ok {
		return s, nil
	}

	v, err, _ := m.flight.Do(tenantID, func() (any, error) {
		if s, ok := m.sessions.Get(tenantID); ok {
			return s, nil
		}
		blob, err := m.deps.Store.Load(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		s := m.newSession(tenantID, blob)
		if _, err := m.sessions.Set(tenantID, s); err != nil {
			s.close()
			return nil, errors.WrapFatal(err, "Manager", "Session", "cache session")
		}
		m.logger.Info("Opened editor session", "tenant", tenantID, "pages", len(blob.Pages))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) newSession(tenantID string, blob *page.TenantBlob) *Session {
	logger := m.logger.With("tenant", tenantID)
	store := datastore.New(m.deps.Registry, datastore.WithLogger(logger), datastore.WithMetrics(m.metrics))

	s := &Session{
		tenantID:  tenantID,
		registry:  m.deps.Registry,
		resolver:  m.deps.Resolver,
		assembler: page.NewAssembler(m.normalizer, logger),
		persist:   m.deps.Store,
		fallbacks: component.NewFallbackFactory(m.metrics),
		logger:    logger,
		metrics:   m.metrics,
		blob:      blob,
		store:     store,
		engine:    merge.NewEngine(m.deps.Registry, store, merge.WithLogger(logger), merge.WithMetrics(m.metrics)),
		opened:    make(map[string]bool),
	}
	if m.publisher != nil && m.deltaSubject != "" {
		s.stopForward = m.forward(tenantID, store)
	}
	return s
}

// deltaMessage is the published form of a delta.
type deltaMessage struct {
	Tenant string          `json:"tenant"`
	Delta  datastore.Delta `json:"delta"`
}

func (m *Manager) forward(tenantID string, store *datastore.Store) func() {
	ch, cancel := store.Subscribe(m.forwardBuffer)
	subject := m.deltaSubject + "." + tenantID

	go func() {
		for d := range ch {
			data, err := json.Marshal(deltaMessage{Tenant: tenantID, Delta: d})
			if err != nil {
				m.logger.Warn("Failed to encode delta", "tenant", tenantID, "seq", d.Seq, "error", err)
				continue
			}
			if err := m.publisher.Publish(context.Background(), subject, data); err != nil {
				m.logger.Warn("Failed to publish delta", "subject", subject, "seq", d.Seq, "error", err)
			}
		}
	}()
	return cancel
}

// Evict drops a tenant's session, discarding unsaved edits. The eviction
// callback stops its delta forwarding and closes its subscriptions.
func (m *Manager) Evict(tenantID string) {
	if _, err := m.sessions.Delete(tenantID); err != nil {
		m.logger.Warn("Failed to evict session", "tenant", tenantID, "error", err)
	}
}

// Sessions returns the number of cached sessions.
func (m *Manager) Sessions() int {
	return m.sessions.Size()
}

// Registry returns the component registry sessions use.
func (m *Manager) Registry() *component.Registry {
	return m.deps.Registry
}

// Close closes every session.
func (m *Manager) Close() error {
	for _, id := range m.sessions.Keys() {
		m.Evict(id)
	}
	return m.sessions.Close()
}
