// Package config defines the sitekit runtime configuration and loads it
// from layered JSON/YAML files plus environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/pkg/cache"
	"github.com/c360/sitekit/pkg/tlsutil"
)

// Storage modes for tenant configuration
const (
	StorageModeMemory = "memory" // in-process, seeded from a file
	StorageModeKV     = "kv"     // NATS JetStream key-value bucket
	StorageModeSQL    = "sql"    // database/sql table
	StorageModeHTTP   = "http"   // backend REST API
)

// Config represents the complete application configuration
type Config struct {
	Version  string         `json:"version" yaml:"version"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Tenancy  TenancyConfig  `json:"tenancy" yaml:"tenancy"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	NATS     NATSConfig     `json:"nats" yaml:"nats"`
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Sessions SessionsConfig `json:"sessions" yaml:"sessions"`
	Editor   EditorConfig   `json:"editor" yaml:"editor"`
}

// ServerConfig holds the listener settings
type ServerConfig struct {
	HTTPAddr        string   `json:"http_addr" yaml:"http_addr"`
	MetricsPort     int      `json:"metrics_port" yaml:"metrics_port"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	TLS tlsutil.ServerConfig `json:"tls" yaml:"tls"`
}

// TenancyConfig controls how a request host maps to a tenant id
type TenancyConfig struct {
	BaseDomain         string            `json:"base_domain" yaml:"base_domain"`
	ReservedSubdomains []string          `json:"reserved_subdomains" yaml:"reserved_subdomains"`
	CustomDomains      map[string]string `json:"custom_domains,omitempty" yaml:"custom_domains"`
	AllowHeader        bool              `json:"allow_header" yaml:"allow_header"`
}

// StorageConfig selects and configures the tenant store backend
type StorageConfig struct {
	Mode     string            `json:"mode" yaml:"mode"`
	Bucket   string            `json:"bucket" yaml:"bucket"`
	SeedFile string            `json:"seed_file,omitempty" yaml:"seed_file"`
	SQL      SQLConfig         `json:"sql" yaml:"sql"`
	HTTP     HTTPBackendConfig `json:"http" yaml:"http"`
}

// SQLConfig for the database/sql backend
type SQLConfig struct {
	Driver string `json:"driver" yaml:"driver"` // sqlite, postgres or mysql
	DSN    string `json:"dsn" yaml:"dsn"`
}

// HTTPBackendConfig for the REST backend
type HTTPBackendConfig struct {
	BaseURL           string   `json:"base_url" yaml:"base_url"`
	Token             string   `json:"token,omitempty" yaml:"token"`
	Timeout           Duration `json:"timeout" yaml:"timeout"`
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int      `json:"burst" yaml:"burst"`

	TLS tlsutil.ClientConfig `json:"tls" yaml:"tls"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string `json:"urls,omitempty" yaml:"urls"`
	MaxReconnects int      `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Username      string   `json:"username,omitempty" yaml:"username"`
	Password      string   `json:"password,omitempty" yaml:"password"`
	Token         string   `json:"token,omitempty" yaml:"token"`
}

// ResolverConfig configures component resolution
type ResolverConfig struct {
	Cache       cache.Config `json:"cache" yaml:"cache"`
	LoadTimeout Duration     `json:"load_timeout" yaml:"load_timeout"`
}

// SessionsConfig configures the per-tenant editor session cache
type SessionsConfig struct {
	Cache cache.Config `json:"cache" yaml:"cache"`
}

// EditorConfig configures editor API behavior
type EditorConfig struct {
	SavesPerMinute float64 `json:"saves_per_minute" yaml:"saves_per_minute"`
	SaveBurst      int     `json:"save_burst" yaml:"save_burst"`
	PublishDeltas  bool    `json:"publish_deltas" yaml:"publish_deltas"`
	DeltaSubject   string  `json:"delta_subject" yaml:"delta_subject"`
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			MetricsPort:     9090,
			ReadTimeout:     Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Tenancy: TenancyConfig{
			BaseDomain:         "localhost",
			ReservedSubdomains: []string{"www", "api", "admin", "app", "dashboard", "live-editor", "auth", "mail"},
			AllowHeader:        true,
		},
		Storage: StorageConfig{
			Mode:   StorageModeMemory,
			Bucket: "sitekit_tenants",
			SQL:    SQLConfig{Driver: "sqlite", DSN: "file:sitekit.db?_pragma=busy_timeout(5000)"},
			HTTP: HTTPBackendConfig{
				Timeout:           Duration(10 * time.Second),
				RequestsPerSecond: 20,
				Burst:             5,
			},
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Resolver: ResolverConfig{
			Cache:       cache.DefaultConfig(),
			LoadTimeout: Duration(5 * time.Second),
		},
		Sessions: SessionsConfig{
			Cache: cache.Config{Enabled: true, Strategy: cache.StrategyLRU, MaxSize: 256},
		},
		Editor: EditorConfig{
			SavesPerMinute: 30,
			SaveBurst:      3,
			DeltaSubject:   "sitekit.deltas",
		},
	}
}

var sqlDrivers = []string{"sqlite", "postgres", "mysql"}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	var problems []string

	if c.Server.HTTPAddr == "" {
		problems = append(problems, "server.http_addr is required")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		problems = append(problems, fmt.Sprintf("server.metrics_port out of range: %d", c.Server.MetricsPort))
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		problems = append(problems, "server.tls requires cert_file and key_file")
	}
	if c.Tenancy.BaseDomain == "" {
		problems = append(problems, "tenancy.base_domain is required")
	}

	switch c.Storage.Mode {
	case StorageModeMemory:
	case StorageModeKV:
		if len(c.NATS.URLs) == 0 {
			problems = append(problems, "nats.urls is required for kv storage")
		}
		if c.Storage.Bucket == "" {
			problems = append(problems, "storage.bucket is required for kv storage")
		}
	case StorageModeSQL:
		if !slices.Contains(sqlDrivers, c.Storage.SQL.Driver) {
			problems = append(problems, fmt.Sprintf("storage.sql.driver must be one of %v", sqlDrivers))
		}
		if c.Storage.SQL.DSN == "" {
			problems = append(problems, "storage.sql.dsn is required for sql storage")
		}
	case StorageModeHTTP:
		if c.Storage.HTTP.BaseURL == "" {
			problems = append(problems, "storage.http.base_url is required for http storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.mode %q", c.Storage.Mode))
	}

	if err := c.Resolver.Cache.Validate(); err != nil {
		problems = append(problems, "resolver.cache: "+err.Error())
	}
	if !c.Resolver.Cache.Enabled {
		problems = append(problems, "resolver.cache.enabled must be true")
	}
	if err := c.Sessions.Cache.Validate(); err != nil {
		problems = append(problems, "sessions.cache: "+err.Error())
	}
	if c.Editor.SavesPerMinute < 0 {
		problems = append(problems, "editor.saves_per_minute cannot be negative")
	}
	if c.Editor.PublishDeltas && c.Editor.DeltaSubject == "" {
		problems = append(problems, "editor.delta_subject is required when publish_deltas is set")
	}

	if len(problems) > 0 {
		return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; ")),
			"Config", "Validate", "validate configuration")
	}
	return nil
}

// NeedsNATS reports whether the configuration requires a NATS connection.
func (c *Config) NeedsNATS() bool {
	return c.Storage.Mode == StorageModeKV || c.Editor.PublishDeltas
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Duration is a time.Duration that reads and writes as a string such as
// "5s" in JSON and YAML. Plain numbers are read as nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1m30s" style strings or integer nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or integer nanoseconds")
	}
	*d = Duration(n)
	return nil
}
