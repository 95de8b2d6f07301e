package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zumagro/soil-nutrient-service/internal/adapter/catalog"
	httpadapter "github.com/zumagro/soil-nutrient-service/internal/adapter/http"
	kafkaadapter "github.com/zumagro/soil-nutrient-service/internal/adapter/kafka"
	"github.com/zumagro/soil-nutrient-service/internal/adapter/raster"
	"github.com/zumagro/soil-nutrient-service/internal/config"
	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/observability"
	"github.com/zumagro/soil-nutrient-service/internal/orchestrator"
	"github.com/zumagro/soil-nutrient-service/internal/pipeline"
	"github.com/zumagro/soil-nutrient-service/internal/resilience"
	"github.com/zumagro/soil-nutrient-service/internal/source"
	"github.com/zumagro/soil-nutrient-service/internal/village"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	districts, err := domain.LoadCalibrations(cfg.CalibrationPath)
	if err != nil {
		logger.Error("failed to load district calibrations", "error", err, "path", cfg.CalibrationPath)
		os.Exit(1)
	}
	if len(districts) > 0 {
		logger.Info("district calibrations loaded", "districts", len(districts))
	}
	resolver := domain.NewCoefficientResolver(districts)

	records, err := village.LoadDataset(cfg.VillageDataPath)
	if err != nil {
		logger.Error("failed to load village dataset", "error", err, "path", cfg.VillageDataPath)
		os.Exit(1)
	}
	villageEst := village.NewEstimator(records, cfg.VillageMaxDistanceKm, cfg.VillageTopN, logger)
	logger.Info("village dataset loaded", "villages", len(records))

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, executor, logger, metrics.CatalogDuration)
	fetcher := raster.NewFetcher(cfg.RasterTimeout, executor, logger, metrics.BandDuration)
	pool := source.NewFetchPool(cfg.FetchConcurrency)

	var sources []source.Source
	for _, sc := range source.DefaultConfigs() {
		if sc.CloudPenetrating {
			sources = append(sources, source.NewRadar(sc, catalogClient, fetcher, resolver, pool, logger))
		} else {
			sources = append(sources, source.NewOptical(sc, catalogClient, fetcher, resolver, pool, logger))
		}
	}

	cache := orchestrator.NewCache(cfg.CacheSize, cfg.CacheTTL)
	orch := orchestrator.New(sources, villageEst, cache, orchestrator.Config{
		BBoxHalfWidthDeg: cfg.BBoxHalfWidthDeg,
		RequestBudget:    cfg.RequestBudget,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		RetryMaxDelay:    cfg.RetryMaxDelay,
		Parallel:         cfg.ParallelSources,
	}, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	estimator := pipeline.NewFieldEstimator(orch, logger, metrics)

	p := pipeline.New(reader, estimator, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, cache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start estimation pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
