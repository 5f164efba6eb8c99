package tenantstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/page"
	"github.com/c360/sitekit/pkg/retry"
)

const maxBackendBody = 8 << 20

// HTTPConfig configures the REST backend client.
type HTTPConfig struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             retry.Config
	TLS               *tls.Config
}

// HTTPStore talks to the site builder backend:
//
//	GET  {base}/tenants                                list tenant ids
//	GET  {base}/tenants/{tenant}/components            tenant document
//	PUT  {base}/tenants/{tenant}/pages/{slug}/components  {"components": [...]}
//
// Requests are rate limited per store and retried on transient failures.
type HTTPStore struct {
	base    *url.URL
	token   string
	client  *http.Client
	limiter *rate.Limiter
	retry   retry.Config
	logger  *slog.Logger
}

// NewHTTPStore validates cfg and creates the client.
func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	if cfg.BaseURL == "" {
		return nil, errors.WrapFatal(fmt.Errorf("%w: backend base URL is required", errors.ErrMissingConfig),
			"HTTPStore", "New", "config validation")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, errors.WrapFatal(fmt.Errorf("%w: backend base URL %q", errors.ErrInvalidConfig, cfg.BaseURL),
			"HTTPStore", "New", "config validation")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	rc := cfg.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.DefaultConfig()
	}
	rc.RetryIf = errors.IsTransient

	return &HTTPStore{
		base:    base,
		token:   cfg.Token,
		client:  newHTTPClient(timeout, cfg.TLS),
		limiter: rate.NewLimiter(limit, burst),
		retry:   rc,
		logger:  slog.Default().With("component", "tenantstore", "backend", "http"),
	}, nil
}

func newHTTPClient(timeout time.Duration, tlsConfig *tls.Config) *http.Client {
	if tlsConfig == nil {
		return &http.Client{Timeout: timeout}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Timeout: timeout, Transport: transport}
}

func (s *HTTPStore) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return s.base.String() + "/" + strings.Join(escaped, "/")
}

// do sends one request and returns the body of a 2xx response.
func (s *HTTPStore) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.WrapTransient(errors.Join(errors.ErrRateLimited, err), "HTTPStore", method, "rate limiter wait")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.WrapFatal(err, "HTTPStore", method, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(errors.Join(errors.ErrStorageUnavailable, err), "HTTPStore", method, "send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPStore", method, "read response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.ErrKeyNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, errors.WrapTransient(errors.ErrSaveConflict, "HTTPStore", method, "backend conflict")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.WrapTransient(errors.ErrRateLimited, "HTTPStore", method, "backend throttled")
	case resp.StatusCode >= 500:
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: HTTP %d", errors.ErrStorageUnavailable, resp.StatusCode), "HTTPStore", method, "backend error")
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), "HTTPStore", method, "backend rejected request")
	}
}

// Load implements Store.
func (s *HTTPStore) Load(ctx context.Context, tenantID string) (*page.TenantBlob, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	raw, err := retry.DoWithResult(ctx, s.retry, func() ([]byte, error) {
		return s.do(ctx, http.MethodGet, s.endpoint("tenants", tenantID, "components"), nil)
	})
	if errors.Is(err, errors.ErrKeyNotFound) {
		return nil, notFound(tenantID)
	}
	if err != nil {
		return nil, err
	}
	return page.ParseTenantComponentBlob(raw)
}

// SavePage implements Store. The backend receives the whole page list, so
// a retried request is idempotent.
func (s *HTTPStore) SavePage(ctx context.Context, tenantID, slug string, list []component.Instance) error {
	if err := validateSave(tenantID, slug, list); err != nil {
		return err
	}
	if list == nil {
		list = []component.Instance{}
	}
	body, err := json.Marshal(map[string]any{"components": list})
	if err != nil {
		return errors.WrapInvalid(err, "HTTPStore", "SavePage", "encode components")
	}

	target := s.endpoint("tenants", tenantID, "pages", slug, "components")
	err = retry.Do(ctx, s.retry, func() error {
		_, err := s.do(ctx, http.MethodPut, target, body)
		return err
	})
	if errors.Is(err, errors.ErrKeyNotFound) {
		return notFound(tenantID)
	}
	if err != nil {
		s.logger.Warn("Backend save failed", "tenant", tenantID, "page", slug, "error", err)
		return err
	}
	return nil
}

// Tenants implements Store.
func (s *HTTPStore) Tenants(ctx context.Context) ([]string, error) {
	raw, err := retry.DoWithResult(ctx, s.retry, func() ([]byte, error) {
		return s.do(ctx, http.MethodGet, s.endpoint("tenants"), nil)
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, errors.WrapInvalid(err, "HTTPStore", "Tenants", "decode tenant list")
	}
	return ids, nil
}
