// Package main runs the sitekit live editor server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/profile"

	"github.com/c360/sitekit/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sitekit"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		slog.Info("Configuration is valid", "storage", cfg.Storage.Mode)
		return nil
	}

	if stop := startProfiling(cliCfg.Profile, cliCfg.ProfilePath); stop != nil {
		defer stop()
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout.Std()
	if cliCfg.ShutdownTimeout > 0 {
		shutdownTimeout = cliCfg.ShutdownTimeout
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer app.close(shutdownTimeout)

	slog.Info("sitekit started", "http_addr", cfg.Server.HTTPAddr, "metrics_port", cfg.Server.MetricsPort)
	if err := app.serve(ctx, shutdownTimeout); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	slog.Info("sitekit shutdown complete")
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	slog.SetDefault(setupLogger(cliCfg.LogLevel, cliCfg.LogFormat))
	slog.Info("Starting sitekit",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)
	return cliCfg, false, nil
}

// loadConfig layers the optional file over defaults and environment overrides.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// startProfiling starts the requested profile and returns its stop function.
func startProfiling(mode, dir string) func() {
	var opt func(*profile.Profile)
	switch mode {
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	case "allocs":
		opt = profile.MemProfileAllocs
	case "block":
		opt = profile.BlockProfile
	case "mutex":
		opt = profile.MutexProfile
	case "goroutine":
		opt = profile.GoroutineProfile
	case "trace":
		opt = profile.TraceProfile
	default:
		return nil
	}

	slog.Info("Profiling enabled", "mode", mode, "path", dir)
	p := profile.Start(opt, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet)
	return func() {
		start := time.Now()
		p.Stop()
		slog.Info("Profile written", "mode", mode, "path", dir, "elapsed", time.Since(start))
	}
}
