package main

import (
	"context"
	"errors"
	"time"

	"patrimonio/internal/cli"
	"patrimonio/internal/log"
	"patrimonio/internal/services"
	"patrimonio/internal/worker"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg)
	cli.ValidateConfig(logger, cfg)

	logger.Info("Starting projection-worker")

	if cfg.DataBackend != "sqlite" {
		logger.Warn("Projection worker shares runs with the server only through sqlite", "backend", cfg.DataBackend)
	}

	stores := cli.OpenBackend(context.Background(), logger, cfg)
	amqpClient := cli.OpenAMQP(logger, cfg, false)

	projections := services.NewProjectionService(services.ProjectionDeps{
		Engine:   cli.NewEngine(cfg, logger),
		Events:   stores.Stores,
		Runs:     stores.Stores,
		Exporter: cli.OpenExporter(context.Background(), logger, cfg),
		Limits:   cli.Limits(cfg),
		Timeout:  cfg.SimulationTimeout,
		Logger:   logger,
	})
	projectionWorker := worker.NewProjectionWorker(stores.Stores, projections, 10, cfg.QueueSweepInterval, 2*cfg.SimulationTimeout, logger)

	consumerDone := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		select {
		case <-consumerDone:
		case <-ctx.Done():
			logger.Warn("Consumer still busy at shutdown deadline")
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

	// Runs whose message was lost while no worker was up.
	logger.Info("Performing startup queue check...")
	if err := projectionWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup queue check", log.FieldError, err)
	}

	go projectionWorker.RunSweep(ctx, cfg.QueueSweepInterval)

	go func() {
		defer close(consumerDone)
		if amqpClient == nil {
			logger.Info("Skipping AMQP message consumption, relying on the queue sweep",
				"interval", cfg.QueueSweepInterval)
			<-ctx.Done()
			return
		}
		err := amqpClient.ConsumeProjectionJobs(ctx, projectionWorker.HandleProjectionJob)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
