package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/componentregistry"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/pkg/cache"
	"github.com/c360/sitekit/tenantstore"
)

const acmeDoc = `{
  "components": [
    ["homepage", [
      {"id": "header-1", "type": "header", "componentName": "header1", "position": 0},
      {"id": "hero-1", "type": "unknown", "componentName": "hero2", "position": 1,
       "data": {"texts": {"title": "Acme Homes"}}},
      {"id": "cta-1", "type": "ctaValuation", "componentName": "ctaValuation9", "position": 2}
    ]],
    ["about", [
      {"id": "team-1", "type": "team"}
    ]]
  ]
}`

type failingStore struct {
	tenantstore.Store
	err error
}

func (f *failingStore) SavePage(context.Context, string, string, []component.Instance) error {
	return f.err
}

func newTestManager(t *testing.T, store tenantstore.Store, opts ...Option) *Manager {
	t.Helper()
	reg := component.NewRegistry()
	require.NoError(t, componentregistry.Register(reg))
	resolver, err := component.NewResolver(reg, nil)
	require.NoError(t, err)

	m, err := NewManager(Dependencies{
		Registry: reg,
		Resolver: resolver,
		Store:    store,
		Metrics:  metric.NewMetricsRegistry(),
	}, cache.Config{Enabled: true, Strategy: cache.StrategyLRU, MaxSize: 4}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func seededStore(t *testing.T) *tenantstore.MemoryStore {
	t.Helper()
	s := tenantstore.NewMemoryStore()
	require.NoError(t, s.Put(context.Background(), "acme", []byte(acmeDoc)))
	return s
}

func TestSession_OpenAndConfig(t *testing.T) {
	m := newTestManager(t, seededStore(t))
	ctx := context.Background()

	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)

	list, err := s.Open(ctx, "homepage")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "hero", list[1].Type, "legacy type repaired")

	cfg, err := s.Config(ctx, "homepage", "hero-1", nil)
	require.NoError(t, err)
	texts := cfg["texts"].(map[string]any)
	assert.Equal(t, "Acme Homes", texts["title"])
	assert.Equal(t, "Local experts in sales and lettings", texts["subtitle"], "default survives deep merge")

	cfg, err = s.Config(ctx, "homepage", "hero-1", map[string]any{"texts": map[string]any{"title": "Preview"}})
	require.NoError(t, err)
	assert.Equal(t, "Preview", cfg["texts"].(map[string]any)["title"])

	_, err = s.Config(ctx, "homepage", "missing", nil)
	assert.True(t, errors.IsNotFound(err))

	about, err := s.Open(ctx, "about")
	require.NoError(t, err)
	require.Len(t, about, 1)
	assert.Equal(t, "team2", about[0].ComponentName)
}

func TestSession_EditAndSave(t *testing.T) {
	store := seededStore(t)
	m := newTestManager(t, store)
	ctx := context.Background()
	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)

	_, err = s.UpdateByPath(ctx, "homepage", "hero-1", "texts.subtitle", "Since 1990")
	require.NoError(t, err)

	added, _, err := s.Add(ctx, "homepage", "testimonials", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "testimonials1", added.ComponentName)
	assert.Equal(t, 3, added.Position)
	assert.Contains(t, added.ID, "testimonials-")

	_, err = s.Remove(ctx, "homepage", "header-1")
	require.NoError(t, err)
	_, err = s.Reorder(ctx, "homepage", []string{added.ID, "hero-1", "cta-1"})
	require.NoError(t, err)

	saved, err := s.Save(ctx, "homepage")
	require.NoError(t, err)
	require.Len(t, saved, 3)

	blob, err := store.Load(ctx, "acme")
	require.NoError(t, err)
	home := blob.Pages["homepage"]
	require.Len(t, home, 3)
	assert.Equal(t, added.ID, home[0].ID)
	assert.Equal(t, "hero", home[1].Type)
	assert.Equal(t, "Since 1990", home[1].Data["texts"].(map[string]any)["subtitle"])
	assert.Len(t, blob.Pages["about"], 1)
}

func TestSession_AddValidation(t *testing.T) {
	m := newTestManager(t, seededStore(t))
	ctx := context.Background()
	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)

	_, _, err = s.Add(ctx, "homepage", "carousel", "", nil)
	assert.ErrorIs(t, err, errors.ErrUnknownType)

	_, _, err = s.Add(ctx, "homepage", "hero", "footer1", nil)
	assert.True(t, errors.IsInvalid(err))

	_, _, err = s.Add(ctx, "homepage", "hero", "hero", nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestSession_SaveFailureLeavesStateUntouched(t *testing.T) {
	mem := seededStore(t)
	m := newTestManager(t, &failingStore{Store: mem, err: errors.WrapTransient(errors.ErrStorageUnavailable, "test", "SavePage", "save")})
	ctx := context.Background()
	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)

	_, err = s.SetData(ctx, "homepage", "hero-1", map[string]any{"texts": map[string]any{"title": "Unsaved"}})
	require.NoError(t, err)

	_, err = s.Save(ctx, "homepage")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	cfg, err := s.Config(ctx, "homepage", "hero-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Unsaved", cfg["texts"].(map[string]any)["title"])

	blob, err := mem.Load(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Homes", blob.Pages["homepage"][1].Data["texts"].(map[string]any)["title"])
}

func TestSession_Render(t *testing.T) {
	m := newTestManager(t, seededStore(t))
	ctx := context.Background()
	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)

	_, err = s.UpdateByPath(ctx, "homepage", "header-1", "visible", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Render(ctx, "homepage", &buf))
	out := buf.String()

	assert.NotContains(t, out, "sitekit-header1", "hidden component not rendered")
	assert.Contains(t, out, "sitekit-hero2")
	assert.Contains(t, out, "Acme Homes")
	assert.Contains(t, out, "ctaValuation/ctaValuation9", "missing variant renders a fallback")
}

func TestManager_UnknownTenant(t *testing.T) {
	m := newTestManager(t, seededStore(t))
	_, err := m.Session(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 0, m.Sessions())
}

func TestManager_SessionReuseAndEvict(t *testing.T) {
	m := newTestManager(t, seededStore(t))
	ctx := context.Background()

	a, err := m.Session(ctx, "acme")
	require.NoError(t, err)
	b, err := m.Session(ctx, "acme")
	require.NoError(t, err)
	assert.Same(t, a, b)

	m.Evict("acme")
	assert.Equal(t, 0, m.Sessions())
	c, err := m.Session(ctx, "acme")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := NewManager(Dependencies{}, cache.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects)
}

func TestManager_PublishesDeltas(t *testing.T) {
	pub := &recordingPublisher{}
	m := newTestManager(t, seededStore(t), WithDeltaPublisher(pub, "sitekit.deltas"))
	ctx := context.Background()

	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)
	_, err = s.UpdateByPath(ctx, "homepage", "hero-1", "texts.title", "Live")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return pub.count() > 0 }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "sitekit.deltas.acme", pub.subjects[0])
	var msg map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[len(pub.payloads)-1], &msg))
	assert.Equal(t, "acme", msg["tenant"])
}

func TestManager_EvictClosesSubscriptions(t *testing.T) {
	m := newTestManager(t, seededStore(t))
	ctx := context.Background()

	s, err := m.Session(ctx, "acme")
	require.NoError(t, err)
	deltas, cancel := s.Subscribe(4)
	defer cancel()

	m.Evict("acme")

	select {
	case _, open := <-deltas:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription left open after eviction")
	}
	assert.Equal(t, 0, s.Store().Subscribers())
}
