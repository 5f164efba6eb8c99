package tenantstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/pkg/retry"
)

type fakeBackend struct {
	mu       sync.Mutex
	docs     map[string]string
	saved    map[string]json.RawMessage
	failures atomic.Int32
	auth     string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tenants", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"acme"})
	})
	mux.HandleFunc("GET /tenants/{tenant}/components", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.auth = r.Header.Get("Authorization")
		doc, ok := b.docs[r.PathValue("tenant")]
		b.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, doc)
	})
	mux.HandleFunc("PUT /tenants/{tenant}/pages/{slug}/components", func(w http.ResponseWriter, r *http.Request) {
		if b.failures.Load() > 0 {
			b.failures.Add(-1)
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.saved[r.PathValue("tenant")+"/"+r.PathValue("slug")] = body["components"]
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newBackend(t *testing.T) (*fakeBackend, *HTTPStore) {
	t.Helper()
	b := &fakeBackend{docs: map[string]string{"acme": seedDoc}, saved: map[string]json.RawMessage{}}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	s, err := NewHTTPStore(HTTPConfig{
		BaseURL: srv.URL + "/",
		Token:   "secret",
		Retry:   retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	return b, s
}

func TestHTTPStore_Load(t *testing.T) {
	b, s := newBackend(t)

	blob, err := s.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, blob.Pages["homepage"], 1)
	assert.Equal(t, "Bearer secret", b.auth)

	_, err = s.Load(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestHTTPStore_SaveRetriesTransientFailures(t *testing.T) {
	b, s := newBackend(t)
	b.failures.Store(2)

	require.NoError(t, s.SavePage(context.Background(), "acme", "homepage", samplePage()))

	var saved []map[string]any
	require.NoError(t, json.Unmarshal(b.saved["acme/homepage"], &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "hero-1", saved[0]["id"])
}

func TestHTTPStore_SaveGivesUp(t *testing.T) {
	b, s := newBackend(t)
	b.failures.Store(10)

	err := s.SavePage(context.Background(), "acme", "homepage", samplePage())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Empty(t, b.saved)
}

func TestHTTPStore_Tenants(t *testing.T) {
	_, s := newBackend(t)
	ids, err := s.Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, ids)
}

func TestHTTPStore_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	s, err := NewHTTPStore(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "acme")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewHTTPStore_Validation(t *testing.T) {
	for _, base := range []string{"", "ftp://x", "::bad"} {
		_, err := NewHTTPStore(HTTPConfig{BaseURL: base})
		require.Error(t, err, base)
		assert.True(t, errors.IsFatal(err), base)
	}
}

func TestHTTPStore_TLSBackend(t *testing.T) {
	b := &fakeBackend{docs: map[string]string{"acme": seedDoc}, saved: map[string]json.RawMessage{}}
	srv := httptest.NewTLSServer(b.handler())
	t.Cleanup(srv.Close)

	untrusted, err := NewHTTPStore(HTTPConfig{BaseURL: srv.URL, Retry: retry.Config{MaxAttempts: 1}})
	require.NoError(t, err)
	_, err = untrusted.Tenants(context.Background())
	assert.Error(t, err, "test certificate is not in the system pool")

	trusted, err := NewHTTPStore(HTTPConfig{
		BaseURL: srv.URL,
		TLS:     srv.Client().Transport.(*http.Transport).TLSClientConfig,
	})
	require.NoError(t, err)
	ids, err := trusted.Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, ids)
}
