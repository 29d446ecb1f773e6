package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"patrimonio/internal/cache"
	"patrimonio/internal/cli"
	apphttp "patrimonio/internal/http"
	"patrimonio/internal/log"
	"patrimonio/internal/observability"
	"patrimonio/internal/ports"
	"patrimonio/internal/services"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg)
	cli.ValidateConfig(logger, cfg)

	ctx := context.Background()
	stores := cli.OpenBackend(ctx, logger, cfg)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	cacheManager := cache.NewManager(logger)
	results := cli.OpenResultCache(logger, cfg, cacheManager)
	cacheManager.StartCleanup(time.Minute)

	readyChecks := map[string]apphttp.ReadyCheck{"storage": stores.Ping}
	if results.Ping != nil {
		readyChecks["cache"] = results.Ping
	}

	// Without a broker queued runs execute in this process.
	var publisher ports.JobPublisher
	amqpClient := cli.OpenAMQP(logger, cfg, false)
	if amqpClient != nil {
		publisher = amqpClient
		readyChecks["amqp"] = func(context.Context) error { return amqpClient.Ping() }
	}

	projections := services.NewProjectionService(services.ProjectionDeps{
		Engine:    cli.NewEngine(cfg, logger),
		Events:    stores.Stores,
		Runs:      stores.Stores,
		Publisher: publisher,
		Exporter:  cli.OpenExporter(ctx, logger, cfg),
		Cache:     results.Cache,
		Metrics:   metrics,
		Limits:    cli.Limits(cfg),
		Timeout:   cfg.SimulationTimeout,
		Logger:    logger,
	})
	svc := apphttp.Services{
		Projections: projections,
		Events:      services.NewEventService(stores.Stores, logger),
		Plans:       services.NewPlanService(stores.Stores, projections, logger),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		DefaultSamples: cfg.DefaultSamples,
		Metrics:        metrics,
		ReadyChecks:    readyChecks,
		Logger:         logger,
	})
	srv.ReadTimeout = 10 * time.Second
	// Synchronous projections may run up to the simulation timeout.
	srv.WriteTimeout = cfg.SimulationTimeout + 10*time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := results.Close(); err != nil {
			logger.Warn("Failed to close result cache", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if err := stores.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	})

	logger.Info("Starting patrimonio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil,
		"export_enabled", cfg.ExportEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
