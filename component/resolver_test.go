package component

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/pkg/cache"
)

type stubRenderable struct{ name string }

func (s *stubRenderable) ComponentName() string { return s.name }

func (s *stubRenderable) Render(w io.Writer, _ map[string]any) error {
	_, err := fmt.Fprintf(w, "<section>%s</section>", s.name)
	return err
}

func newTestResolver(t *testing.T, loader Loader, opts ...ResolverOption) *Resolver {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(heroDescriptor()))
	if loader != nil {
		require.NoError(t, reg.RegisterLoader("hero", loader))
	}
	r, err := NewResolver(reg, nil, opts...)
	require.NoError(t, err)
	return r
}

func variantLoader(max int) Loader {
	return func(_ context.Context, p ParsedName) (Renderable, error) {
		if p.Variant > max {
			return nil, fmt.Errorf("no implementation for %s", p)
		}
		return &stubRenderable{name: p.String()}, nil
	}
}

func TestResolver_LoadsAndCaches(t *testing.T) {
	var calls atomic.Int32
	r := newTestResolver(t, func(ctx context.Context, p ParsedName) (Renderable, error) {
		calls.Add(1)
		return variantLoader(3)(ctx, p)
	})

	first := r.Resolve(context.Background(), DefaultSection, "hero2")
	second := r.Resolve(context.Background(), DefaultSection, "hero2")

	assert.Equal(t, "hero2", first.ComponentName())
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, r.CacheSize())
}

func TestResolver_UnknownTypeFallback(t *testing.T) {
	r := newTestResolver(t, variantLoader(3))

	got := r.Resolve(context.Background(), DefaultSection, "carousel2")
	fb, ok := got.(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackUnknown, fb.Kind)
	assert.Equal(t, "hero/carousel2", fb.Path)

	again := r.Resolve(context.Background(), DefaultSection, "carousel2")
	assert.Same(t, got, again)
}

func TestResolver_UnknownSectionUsesGenericPath(t *testing.T) {
	r := newTestResolver(t, variantLoader(3))

	fb, ok := r.Resolve(context.Background(), "blog", "hero1").(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackUnknown, fb.Kind)
	assert.Equal(t, "hero/hero1", fb.Path)
}

func TestResolver_UnparseableName(t *testing.T) {
	r := newTestResolver(t, variantLoader(3))

	fb, ok := r.Resolve(context.Background(), DefaultSection, "hero").(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackUnknown, fb.Kind)
	assert.Equal(t, "hero", fb.Name)
}

func TestResolver_LoadFailedFallback(t *testing.T) {
	r := newTestResolver(t, variantLoader(3))

	got := r.Resolve(context.Background(), DefaultSection, "hero9")
	fb, ok := got.(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackLoadFailed, fb.Kind)
	assert.Equal(t, "Hero", fb.DisplayName)
	assert.Equal(t, "hero/hero9", fb.Path)

	var buf bytes.Buffer
	require.NoError(t, got.Render(&buf, map[string]any{"texts": map[string]any{"title": "Sell with us"}}))
	assert.Contains(t, buf.String(), "Sell with us")
	assert.Contains(t, buf.String(), "hero/hero9")

	assert.Same(t, got, r.Resolve(context.Background(), DefaultSection, "hero9"))
}

func TestResolver_MissingLoader(t *testing.T) {
	r := newTestResolver(t, nil)

	fb, ok := r.Resolve(context.Background(), DefaultSection, "hero1").(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackLoadFailed, fb.Kind)
}

func TestResolver_CoalescesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := newTestResolver(t, func(_ context.Context, p ParsedName) (Renderable, error) {
		calls.Add(1)
		<-release
		return &stubRenderable{name: p.String()}, nil
	})

	const callers = 8
	results := make([]Renderable, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), DefaultSection, "hero1")
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, res := range results {
		assert.Same(t, results[0], res)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestResolver_CancelledWhileLoadingIsNotCached(t *testing.T) {
	release := make(chan struct{})
	r := newTestResolver(t, func(_ context.Context, p ParsedName) (Renderable, error) {
		<-release
		return &stubRenderable{name: p.String()}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := r.Resolve(ctx, DefaultSection, "hero1")
	fb, ok := got.(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackPending, fb.Kind)

	close(release)
	assert.Eventually(t, func() bool { return r.CacheSize() == 1 }, time.Second, 5*time.Millisecond)
	_, isFallback := r.Resolve(context.Background(), DefaultSection, "hero1").(*Fallback)
	assert.False(t, isFallback)
}

func TestResolver_LoadTimeoutIsNotCached(t *testing.T) {
	r := newTestResolver(t, func(ctx context.Context, _ ParsedName) (Renderable, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithLoadTimeout(10*time.Millisecond))

	fb, ok := r.Resolve(context.Background(), DefaultSection, "hero1").(*Fallback)
	require.True(t, ok)
	assert.Equal(t, FallbackPending, fb.Kind)
	assert.Equal(t, 0, r.CacheSize())
}

func TestResolver_InjectedLRUCache(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(heroDescriptor()))
	require.NoError(t, reg.RegisterLoader("hero", variantLoader(5)))

	lru, err := cache.NewLRU[Renderable](2)
	require.NoError(t, err)
	r, err := NewResolver(reg, lru)
	require.NoError(t, err)

	for _, name := range []string{"hero1", "hero2", "hero3"} {
		r.Resolve(context.Background(), DefaultSection, name)
	}
	assert.Equal(t, 2, r.CacheSize())

	require.NoError(t, r.Reset())
	assert.Equal(t, 0, r.CacheSize())
}

func TestNewResolver_RequiresRegistry(t *testing.T) {
	_, err := NewResolver(nil, nil)
	assert.Error(t, err)
}
