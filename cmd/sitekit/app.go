package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/componentregistry"
	"github.com/c360/sitekit/config"
	"github.com/c360/sitekit/editor"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/health"
	"github.com/c360/sitekit/metric"
	"github.com/c360/sitekit/natsclient"
	"github.com/c360/sitekit/pkg/cache"
	"github.com/c360/sitekit/pkg/tlsutil"
	"github.com/c360/sitekit/service"
	"github.com/c360/sitekit/tenant"
	"github.com/c360/sitekit/tenantstore"
)

// app holds the wired server and everything that must be closed with it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	nats    *natsclient.Client
	checker *health.Checker
	manager *editor.Manager
	api     *service.API
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metric.NewMetricsRegistry(),
		checker: health.NewChecker(2 * time.Second),
	}

	if cfg.NeedsNATS() {
		if err := a.connectNATS(ctx); err != nil {
			a.close(5 * time.Second)
			return nil, err
		}
	}

	store, err := a.setupStorage(ctx)
	if err != nil {
		a.close(5 * time.Second)
		return nil, err
	}

	if err := a.setupEditor(store); err != nil {
		a.close(5 * time.Second)
		return nil, err
	}
	return a, nil
}

// connectNATS establishes the NATS connection and waits for it to be ready
func (a *app) connectNATS(ctx context.Context) error {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(a.metrics),
		natsclient.WithMaxReconnects(a.cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(a.cfg.NATS.ReconnectWait.Std()),
	}
	if a.cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(a.cfg.NATS.Username, a.cfg.NATS.Password))
	}
	if a.cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(a.cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(strings.Join(a.cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS")
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	a.nats = client
	a.checker.Add("nats", health.ConnectedCheck(client.IsHealthy))
	return nil
}

// setupStorage opens the tenant store selected by storage.mode.
func (a *app) setupStorage(ctx context.Context) (tenantstore.Store, error) {
	sc := a.cfg.Storage
	logger := a.logger.With("storage", sc.Mode)

	switch sc.Mode {
	case config.StorageModeMemory:
		store := tenantstore.NewMemoryStore()
		if sc.SeedFile != "" {
			if err := store.LoadSeedFile(sc.SeedFile); err != nil {
				return nil, fmt.Errorf("seed memory store: %w", err)
			}
		}
		tenants, _ := store.Tenants(ctx)
		logger.Info("Using in-memory tenant store", "tenants", len(tenants))
		return store, nil

	case config.StorageModeKV:
		store, err := tenantstore.NewKVStore(ctx, a.nats, sc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open KV tenant store: %w", err)
		}
		if sc.SeedFile != "" {
			if err := seedStore(ctx, store, sc.SeedFile); err != nil {
				return nil, err
			}
		}
		logger.Info("Using NATS KV tenant store", "bucket", sc.Bucket)
		a.checker.Add("storage", health.PingCheck(func(ctx context.Context) error {
			_, err := store.Tenants(ctx)
			return err
		}))
		return store, nil

	case config.StorageModeSQL:
		store, err := tenantstore.OpenSQLStore(ctx, sc.SQL.Driver, sc.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open SQL tenant store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if sc.SeedFile != "" {
			if err := seedStore(ctx, store, sc.SeedFile); err != nil {
				return nil, err
			}
		}
		logger.Info("Using SQL tenant store", "driver", sc.SQL.Driver)
		a.checker.Add("storage", health.PingCheck(store.Ping))
		return store, nil

	case config.StorageModeHTTP:
		var clientTLS *tls.Config
		if !sc.HTTP.TLS.IsZero() {
			var err error
			if clientTLS, err = tlsutil.Client(sc.HTTP.TLS); err != nil {
				return nil, fmt.Errorf("backend TLS: %w", err)
			}
		}
		store, err := tenantstore.NewHTTPStore(tenantstore.HTTPConfig{
			BaseURL:           sc.HTTP.BaseURL,
			Token:             sc.HTTP.Token,
			Timeout:           sc.HTTP.Timeout.Std(),
			RequestsPerSecond: sc.HTTP.RequestsPerSecond,
			Burst:             sc.HTTP.Burst,
			TLS:               clientTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("create backend client: %w", err)
		}
		logger.Info("Using backend API tenant store", "base_url", sc.HTTP.BaseURL)
		return store, nil
	}

	return nil, errors.WrapFatal(fmt.Errorf("%w: storage mode %q", errors.ErrInvalidConfig, sc.Mode),
		"app", "setupStorage", "select backend")
}

// seedStore copies the documents of a seed file into a persistent store
// for tenants it does not hold yet.
func seedStore(ctx context.Context, store interface {
	tenantstore.Store
	tenantstore.Seeder
}, path string) error {
	seed := tenantstore.NewMemoryStore()
	if err := seed.LoadSeedFile(path); err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	tenants, err := seed.Tenants(ctx)
	if err != nil {
		return err
	}
	for _, id := range tenants {
		if _, err := store.Load(ctx, id); err == nil {
			continue
		} else if !errors.IsNotFound(err) {
			return fmt.Errorf("check tenant %s: %w", id, err)
		}
		raw, err := seed.Raw(id)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, id, raw); err != nil {
			return fmt.Errorf("seed tenant %s: %w", id, err)
		}
		slog.Info("Seeded tenant", "tenant", id)
	}
	return nil
}

// setupEditor builds the component registry, resolver, session manager and API.
func (a *app) setupEditor(store tenantstore.Store) error {
	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return fmt.Errorf("register components: %w", err)
	}
	types := registry.Types()
	slog.Info("Component types registered", "count", len(types), "sections", registry.Sections())

	resolverCache, err := cache.NewFromConfig[component.Renderable](a.cfg.Resolver.Cache,
		cache.WithMetrics[component.Renderable](a.metrics, "component_resolver"))
	if err != nil {
		return fmt.Errorf("create resolver cache: %w", err)
	}
	resolver, err := component.NewResolver(registry, resolverCache,
		component.WithResolverLogger(a.logger),
		component.WithResolverMetrics(a.metrics.CoreMetrics()),
		component.WithLoadTimeout(a.cfg.Resolver.LoadTimeout.Std()))
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	var opts []editor.Option
	if a.cfg.Editor.PublishDeltas && a.nats != nil {
		opts = append(opts, editor.WithDeltaPublisher(a.nats, a.cfg.Editor.DeltaSubject))
		slog.Info("Publishing editor deltas", "subject", a.cfg.Editor.DeltaSubject+".<tenant>")
	}
	manager, err := editor.NewManager(editor.Dependencies{
		Registry: registry,
		Resolver: resolver,
		Store:    store,
		Metrics:  a.metrics,
		Logger:   a.logger,
	}, a.cfg.Sessions.Cache, opts...)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	a.manager = manager
	a.closers = append(a.closers, manager.Close)

	tc := a.cfg.Tenancy
	tenants := tenant.NewResolver(tenant.Config{
		BaseDomain:    tc.BaseDomain,
		Reserved:      tc.ReservedSubdomains,
		CustomDomains: tc.CustomDomains,
		AllowHeader:   tc.AllowHeader,
	}, a.logger)

	api, err := service.NewAPI(manager, tenants,
		service.WithLogger(a.logger),
		service.WithMetrics(a.metrics),
		service.WithSaveLimit(a.cfg.Editor.SavesPerMinute, a.cfg.Editor.SaveBurst),
		service.WithHealthChecker(a.checker))
	if err != nil {
		return fmt.Errorf("create editor API: %w", err)
	}
	a.api = api
	return nil
}

// serve runs the API and metrics servers until ctx ends or one of them fails.
func (a *app) serve(ctx context.Context, shutdownTimeout time.Duration) error {
	serverTLS, err := tlsutil.Server(a.cfg.Server.TLS)
	if err != nil {
		return fmt.Errorf("editor API TLS: %w", err)
	}
	apiServer := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout.Std(),
		TLSConfig:         serverTLS,
	}
	var metricsServer *metric.Server
	if a.cfg.Server.MetricsPort > 0 {
		metricsServer = metric.NewServer(a.cfg.Server.MetricsPort, "/metrics", a.metrics)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Editor API listening", "addr", apiServer.Addr, "tls", serverTLS != nil)
		var err error
		if serverTLS != nil {
			// Certificates are already loaded into TLSConfig.
			err = apiServer.ListenAndServeTLS("", "")
		} else {
			err = apiServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("editor API server: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			slog.Info("Metrics server listening", "port", a.cfg.Server.MetricsPort)
			return metricsServer.Start()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.api.Close()
		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("editor API shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// close releases resources in reverse order of creation.
func (a *app) close(timeout time.Duration) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil

	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.nats.Close(ctx); err != nil {
			slog.Warn("Failed to close NATS connection", "error", err)
		}
		a.nats = nil
	}
}
