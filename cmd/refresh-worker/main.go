package main

import (
	"context"
	"time"

	"patrimonio/internal/cli"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
	"patrimonio/internal/services"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg)
	cli.ValidateConfig(logger, cfg)

	logger.Info("Starting refresh-worker")

	stores := cli.OpenBackend(context.Background(), logger, cfg)

	// Due plans are queued here and executed by projection-worker when a
	// broker is configured, in this process otherwise.
	var publisher ports.JobPublisher
	amqpClient := cli.OpenAMQP(logger, cfg, false)
	if amqpClient != nil {
		publisher = amqpClient
	}

	projections := services.NewProjectionService(services.ProjectionDeps{
		Engine:    cli.NewEngine(cfg, logger),
		Events:    stores.Stores,
		Runs:      stores.Stores,
		Publisher: publisher,
		Exporter:  cli.OpenExporter(context.Background(), logger, cfg),
		Limits:    cli.Limits(cfg),
		Timeout:   cfg.SimulationTimeout,
		Logger:    logger,
	})
	plans := services.NewPlanService(stores.Stores, projections, logger)
	processor := services.NewRefreshProcessor(plans, nil, services.RefreshProcessorConfig{
		Interval: cfg.RefreshInterval,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Refresh processor did not stop cleanly", log.FieldError, err)
		}
		projections.Wait()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if err := stores.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	})

	logger.Info("Plan refresh configured",
		"interval", cfg.RefreshInterval,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start refresh processor", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Refresh worker shutdown complete")
}
