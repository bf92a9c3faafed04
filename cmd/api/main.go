package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/api/rest"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/infrastructure/cache"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/infrastructure/config"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/infrastructure/database"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/service/dataquery"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting data API",
		zap.String("environment", cfg.Environment),
		zap.String("self_url", cfg.SelfURL()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	counts, err := cache.NewCountCache(cache.DefaultCountCacheSize, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to create count cache", zap.Error(err))
	}

	catalog := metrics.NewCatalog(cfg.Environment)
	releases := database.NewReleaseRepository(pool, cfg.Environment, logger)

	executor := dataquery.NewService(pool, cfg.Environment, catalog, counts,
		logger, prometheus.DefaultRegisterer, cfg.Database.QueryTimeout)

	handler := rest.NewHandler(executor, releases, catalog,
		cfg.Server.Location, logger, otel.Tracer("api"))

	server := rest.NewServer(cfg, handler, logger, prometheus.DefaultRegisterer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == config.EnvDevelopment {
		return zap.NewDevelopment()
	}

	zapConfig := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = level
	}
	return zapConfig.Build()
}
