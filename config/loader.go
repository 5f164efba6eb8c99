package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/sitekit/errors"
)

const maxConfigSize = 4 << 20

// Loader merges configuration layers on top of Default. Later layers win;
// nested objects merge key by key.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader reading SITEKIT_* environment overrides.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  "SITEKIT",
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer appends a JSON or YAML file to the layer list
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := readLayer(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", fmt.Sprintf("read %s", path))
		}
		merged = deepMergeMaps(merged, raw)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode merged layers")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "decode merged layers")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func readLayer(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
	}
	return raw, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func (l *Loader) env(name string) (string, bool) {
	v, ok := l.lookupEnv(l.envPrefix + "_" + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	if v, ok := l.env("HTTP_ADDR"); ok {
		cfg.Server.HTTPAddr = v
	}
	if v, ok := l.env("METRICS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_METRICS_PORT")
		}
		cfg.Server.MetricsPort = port
	}
	if v, ok := l.env("BASE_DOMAIN"); ok {
		cfg.Tenancy.BaseDomain = v
	}
	if v, ok := l.env("STORAGE_MODE"); ok {
		cfg.Storage.Mode = v
	}
	if v, ok := l.env("SQL_DRIVER"); ok {
		cfg.Storage.SQL.Driver = v
	}
	if v, ok := l.env("SQL_DSN"); ok {
		cfg.Storage.SQL.DSN = v
	}
	if v, ok := l.env("BACKEND_URL"); ok {
		cfg.Storage.HTTP.BaseURL = v
	}
	if v, ok := l.env("BACKEND_TOKEN"); ok {
		cfg.Storage.HTTP.Token = v
	}
	if v, ok := l.env("NATS_URLS"); ok {
		cfg.NATS.URLs = strings.Split(v, ",")
	}
	if v, ok := l.env("NATS_TOKEN"); ok {
		cfg.NATS.Token = v
	}
	return nil
}
