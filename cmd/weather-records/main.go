package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-records/internal/api/http"
	"github.com/i474232898/weather-records/internal/config"
	"github.com/i474232898/weather-records/internal/logging"
	"github.com/i474232898/weather-records/internal/observability"
	"github.com/i474232898/weather-records/internal/scheduler"
	"github.com/i474232898/weather-records/internal/store"
	"github.com/i474232898/weather-records/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // nothing useful to do on exit

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordStore, ready, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	faults := weather.NewFaultConfig(cfg.DelayMs, cfg.FailRate)

	// Core service orchestrating the store and fault injection.
	service := weather.NewService(recordStore, faults, logger, metrics)

	// Retention sweeper; a no-op unless RETENTION_MAX_AGE is set.
	sched := scheduler.New(service, cfg.RetentionMaxAge, cfg.RetentionInterval, clockwork.NewRealClock(), logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, ready, logger)

	go func() {
		logger.Info("http server starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.Int64("delayMs", cfg.DelayMs),
			zap.Float64("failRate", cfg.FailRate))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

// openStore builds the configured store. The returned Pinger backs /health
// and is nil for the memory store.
func openStore(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (weather.Store, httpapi.Pinger, func(), error) {
	if cfg.StoreDriver != config.DriverPostgres {
		return store.NewMemoryStore(), nil, func() {}, nil
	}

	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := pg.Close(); err != nil {
			logger.Warn("closing postgres", zap.Error(err))
		}
	}
	if !cfg.BreakerEnabled {
		return pg, pg, closeFn, nil
	}
	guarded := store.NewBreakerStore(pg, store.DefaultBreakerSettings, logger)
	return guarded, guarded, closeFn, nil
}
