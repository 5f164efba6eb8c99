package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360/sitekit/editor"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/health"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/tenant"
)

// DefaultPrefix is where the editor API is mounted.
const DefaultPrefix = "/api/editor/"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// API serves the live editor endpoints.
type API struct {
	manager   *editor.Manager
	tenants   *tenant.Resolver
	validator *bodyValidator
	limiter   *saveLimiter
	hub       *Hub
	checker   *health.Checker
	logger    *slog.Logger
	metrics   *metric.Metrics

	savesPerMinute float64
	saveBurst      int
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the API logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records request and live connection metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(a *API) {
		a.metrics = registry.CoreMetrics()
	}
}

// WithSaveLimit throttles saves to perMinute per tenant with the given
// burst. A non-positive rate disables throttling.
func WithSaveLimit(perMinute float64, burst int) Option {
	return func(a *API) {
		a.savesPerMinute = perMinute
		a.saveBurst = burst
	}
}

// WithHealthChecker serves checker's result on the health endpoint.
func WithHealthChecker(checker *health.Checker) Option {
	return func(a *API) {
		a.checker = checker
	}
}

// NewAPI creates the editor API.
func NewAPI(manager *editor.Manager, tenants *tenant.Resolver, opts ...Option) (*API, error) {
	if manager == nil || tenants == nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: manager and tenant resolver are required", errors.ErrMissingConfig),
			"API", "NewAPI", "dependency validation")
	}

	a := &API{
		manager: manager,
		tenants: tenants,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "editor-api")

	validator, err := newBodyValidator()
	if err != nil {
		return nil, err
	}
	a.validator = validator

	limiter, err := newSaveLimiter(a.savesPerMinute, a.saveBurst)
	if err != nil {
		return nil, errors.WrapFatal(err, "API", "NewAPI", "save limiter")
	}
	a.limiter = limiter

	if a.checker == nil {
		a.checker = health.NewChecker(2 * time.Second)
	}
	a.hub = NewHub(a.logger, a.metrics)
	return a, nil
}

// RegisterHTTPHandlers registers the editor routes under prefix.
func (a *API) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET " + prefix + "pages/{slug}", a.handleGetPage},
		{"GET " + prefix + "pages/{slug}/render", a.handleRender},
		{"GET " + prefix + "pages/{slug}/components/{id}/config", a.handleGetConfig},
		{"PATCH " + prefix + "pages/{slug}/components/{id}", a.handleUpdatePath},
		{"PUT " + prefix + "pages/{slug}/components/{id}", a.handleReplaceData},
		{"DELETE " + prefix + "pages/{slug}/components/{id}", a.handleRemove},
		{"POST " + prefix + "pages/{slug}/components", a.handleAdd},
		{"POST " + prefix + "pages/{slug}/reorder", a.handleReorder},
		{"POST " + prefix + "pages/{slug}/save", a.handleSave},
		{"GET " + prefix + "catalog", a.handleCatalog},
		{"GET " + prefix + "live", a.handleLive},
	}
	for _, route := range routes {
		mux.Handle(route.pattern, a.instrument(route.pattern, route.handler))
	}

	a.logger.Info("Editor API HTTP handlers registered", "prefix", prefix, "routes", len(routes))
}

// Handler returns a mux serving the editor API under DefaultPrefix and the
// health endpoint at /health.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterHTTPHandlers(DefaultPrefix, mux)
	mux.Handle("GET /health", a.instrument("GET /health", a.handleHealth))
	return mux
}

// Close disconnects live clients.
func (a *API) Close() {
	a.hub.Close()
}

// LiveClients returns the number of connected live clients.
func (a *API) LiveClients() int {
	return a.hub.Clients()
}
