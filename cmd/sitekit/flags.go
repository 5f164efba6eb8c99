package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	Profile         string
	ProfilePath     string
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

var profileModes = []string{"", "cpu", "mem", "allocs", "block", "mutex", "goroutine", "trace"}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SITEKIT_CONFIG", ""),
		"Path to a JSON or YAML configuration file, empty for defaults (env: SITEKIT_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SITEKIT_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: SITEKIT_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SITEKIT_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SITEKIT_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SITEKIT_LOG_FORMAT", "json"),
		"Log format: json, text (env: SITEKIT_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("SITEKIT_DEBUG", false),
		"Enable debug mode (env: SITEKIT_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SITEKIT_SHUTDOWN_TIMEOUT", 0),
		"Graceful shutdown timeout, 0 uses server.shutdown_timeout (env: SITEKIT_SHUTDOWN_TIMEOUT)")

	flag.StringVar(&cfg.Profile, "profile",
		getEnv("SITEKIT_PROFILE", ""),
		"Write a profile: cpu, mem, allocs, block, mutex, goroutine, trace (env: SITEKIT_PROFILE)")

	flag.StringVar(&cfg.ProfilePath, "profile-path",
		getEnv("SITEKIT_PROFILE_PATH", "."),
		"Directory for profile output (env: SITEKIT_PROFILE_PATH)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if !slices.Contains(profileModes, cfg.Profile) {
		return fmt.Errorf("invalid profile mode: %s", cfg.Profile)
	}
	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - live editor component resolution and data merge

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a seeded in-memory store
  %s --config=configs/sitekit.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Override storage through the environment
  export SITEKIT_STORAGE_MODE=sql
  export SITEKIT_SQL_DSN=file:sitekit.db
  %s

  # Capture a CPU profile
  %s --profile=cpu --profile-path=/tmp

  # Validate configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
