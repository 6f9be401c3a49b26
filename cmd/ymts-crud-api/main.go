// Package main provides the entry point for the multi-tenant data API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vmskonakanchi/ymts-crud-api/internal/config"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/handler"
	"github.com/vmskonakanchi/ymts-crud-api/internal/health"
	"github.com/vmskonakanchi/ymts-crud-api/internal/metrics"
	"github.com/vmskonakanchi/ymts-crud-api/internal/secret"
	"github.com/vmskonakanchi/ymts-crud-api/internal/server"
	"github.com/vmskonakanchi/ymts-crud-api/internal/service"
	"github.com/vmskonakanchi/ymts-crud-api/internal/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger settings come from the config, so fall back to defaults here
		logger := initLogger("", "")
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger := initLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	logger.Info("starting data API",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("ledger_driver", cfg.Ledger.Driver),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	key, generated, err := secret.ResolveKey(cfg.Cipher.Key)
	if err != nil {
		logger.Fatal("failed to resolve cipher key", zap.Error(err))
	}
	if generated {
		logger.Warn("no cipher key configured, using a random key; stored secrets will not decrypt after a restart")
	}
	cipher, err := secret.New(key)
	if err != nil {
		logger.Fatal("failed to create cipher", zap.Error(err))
	}

	ctx := context.Background()

	tenantLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open tenant ledger", zap.Error(err))
	}
	defer tenantLedger.Close()

	documentStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to document store", zap.Error(err))
	}

	tenantCache, cachePinger, err := openCache(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create tenant cache", zap.Error(err))
	}
	defer tenantCache.Close()

	// Initialize metrics
	m := metrics.NewMetrics()

	// Start metrics server if enabled
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	errorHandler := apierrors.NewHandler(logger)
	provisioner := service.NewProvisioner(tenantLedger, documentStore, tenantCache, cipher, cfg.Provisioning.Timeout, m, logger)
	router := service.NewRouter(tenantLedger, documentStore, tenantCache, m, logger)
	handlers := handler.NewHandlers(provisioner, router, validation.New(), errorHandler, m, logger, cfg.Server.MaxBodyBytes)

	healthCheck := health.NewHealthCheck(map[string]health.Pinger{
		"ledger": tenantLedger,
		"store":  documentStore,
		"cache":  cachePinger,
	}, cfg.Health.CheckInterval, m, logger)
	defer healthCheck.Stop()

	httpServer := server.NewServer(cfg, handlers, healthCheck, errorHandler, m, logger)

	// Start HTTP server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	healthCheck.SetReady(false)
	m.SetHealthStatus(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	if err := documentStore.Close(shutdownCtx); err != nil {
		logger.Error("failed to close document store", zap.Error(err))
	}

	logger.Info("data API shutdown complete")
}

// initLogger builds the zap logger. LOG_LEVEL and LOG_FORMAT override the
// configured values.
func initLogger(level, format string) *zap.Logger {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		format = env
	}

	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
