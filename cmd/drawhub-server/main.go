// Package main provides the entry point for drawhub-server.
//
// drawhub-server hosts collaborative drawing sessions: it keeps the
// authoritative message history per session, persists it, and exposes a
// status/administration HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/oxleyk/drawhub/internal/core/history"
	"github.com/oxleyk/drawhub/internal/core/session"
	"github.com/oxleyk/drawhub/internal/infra/buildinfo"
	"github.com/oxleyk/drawhub/internal/infra/confloader"
	"github.com/oxleyk/drawhub/internal/infra/shutdown"
	"github.com/oxleyk/drawhub/internal/server/config"
	"github.com/oxleyk/drawhub/internal/server/statusserver"
	"github.com/oxleyk/drawhub/internal/storage"
	"github.com/oxleyk/drawhub/internal/storage/badgerlog"
	"github.com/oxleyk/drawhub/internal/storage/memory"
	"github.com/oxleyk/drawhub/internal/telemetry/logger"
	"github.com/oxleyk/drawhub/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("drawhub-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting drawhub-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", *configFile,
		"storage_backend", cfg.Storage.Backend)

	metrics := metric.New()

	// Initialize storage. The memory backend keeps histories only for
	// the lifetime of the process.
	var engine *storage.Engine
	openBackend := memoryOpenBackend()
	if cfg.Storage.Backend == "badger" {
		engine, err = initStorage(cfg, log)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		engine.RegisterMetrics(metrics.Registry())
		openBackend = badgerOpenBackend(engine)
	}

	registry, err := session.NewRegistry(session.Options{
		NumWorkers:         cfg.Session.Workers,
		SizeLimit:          cfg.Session.SizeLimit,
		AutoResetThreshold: cfg.Session.AutoResetThreshold,
		OpenBackend:        openBackend,
		Logger:             log,
		Observer:           metrics,
	})
	if err != nil {
		return fmt.Errorf("init session registry: %w", err)
	}

	statusSrv := statusserver.New(cfg.Status, registry, metrics.Handler(), slogLogger)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Hooks run in reverse registration order: stop accepting requests
	// first, then drain the session workers, then close storage.
	if engine != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down storage engine")
			return engine.Close()
		})
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down session registry")
		registry.Close()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down status server")
		return statusSrv.Shutdown(ctx)
	})

	// Watch the config file for log level changes.
	if *configFile != "" {
		watcher, err := watchLogLevel(*configFile, log)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(ctx context.Context) error {
				return watcher.Stop()
			})
		}
	}

	go func() {
		log.Info("status server listening", "addr", cfg.Status.Addr)
		if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status server error", "error", err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and its slog form for components
// built directly on log/slog; both share one handler.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)
	return log, logger.Slog(log), nil
}

// watchLogLevel reloads the log level when the config file changes.
// Other settings require a restart.
func watchLogLevel(configFile string, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		return nil, err
	}

	watcher.OnChange(func(path string) {
		cfg, err := loadConfig(configFile)
		if err != nil {
			log.Warn("ignoring config change", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}

// initStorage opens the Badger storage engine.
func initStorage(cfg *config.ServerConfig, log logger.Logger) (*storage.Engine, error) {
	storageCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storageCfg.EncryptionKey = cfg.Storage.EncryptionKey
	storageCfg.Badger.SyncWrites = cfg.Storage.SyncWrites
	if cfg.Storage.GCInterval != "" {
		storageCfg.Badger.GCInterval = cfg.Storage.GCInterval
	}

	return storage.NewEngine(storageCfg, log)
}

// badgerOpenBackend opens a persisted per-session history log.
func badgerOpenBackend(engine *storage.Engine) session.OpenBackend {
	return func(sessionID string) (history.Backend, int64, int64, bool, error) {
		store := badgerlog.New(engine, sessionID)
		size, count, found, err := store.Recover()
		if err != nil {
			return nil, 0, 0, false, err
		}
		return store, size, count, found, nil
	}
}

// memoryOpenBackend keeps session histories in process memory.
func memoryOpenBackend() session.OpenBackend {
	return func(string) (history.Backend, int64, int64, bool, error) {
		return memory.NewHistoryStore(), 0, 0, false, nil
	}
}
