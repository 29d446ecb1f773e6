package cli

import (
	"context"
	"os"

	"patrimonio/internal/amqp"
	"patrimonio/internal/backend"
	"patrimonio/internal/cache"
	"patrimonio/internal/config"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
	"patrimonio/internal/projection"
	"patrimonio/internal/services"
	gsheet "patrimonio/internal/sheets/google"
)

// OpenBackend opens the configured stores.
// Exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	return res
}

func NewEngine(cfg *config.Config, logger *log.Logger) *projection.Engine {
	engine := projection.NewEngine(projection.Options{
		Workers: cfg.SimulationWorkers,
		Logger:  logger,
	})
	logger.Info("Projection engine ready", log.FieldWorkers, engine.Workers())
	return engine
}

// Limits maps the configured caps onto the projection service limits.
func Limits(cfg *config.Config) services.Limits {
	return services.Limits{
		MaxSamples:      cfg.MaxSamples,
		MaxHorizonYears: cfg.MaxHorizonYears,
	}
}

// OpenAMQP connects to the broker when AMQP_URL is set and returns nil
// otherwise. With required set a connection failure exits the process,
// without it the caller falls back to in-process runs.
func OpenAMQP(logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if !cfg.AMQPEnabled() {
		if required {
			logger.Error("AMQP_URL is required")
			os.Exit(1)
		}
		logger.Info("AMQP disabled, projection runs execute in-process")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		if required {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Warn("Failed to initialize AMQP client, projection runs execute in-process", log.FieldError, err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// OpenExporter returns the Google Sheets band exporter, or nil when export
// is disabled or cannot be initialized.
func OpenExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) ports.BandExporter {
	if !cfg.ExportEnabled() {
		logger.Info("Band export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil
	}
	exporter, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		Sheet:              cfg.GoogleBandsSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		Logger:             logger,
	})
	if err != nil {
		logger.Warn("Failed to initialize Google Sheets exporter, continuing without export", log.FieldError, err)
		return nil
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleBandsSheet)
	return exporter
}

// ResultCache is the projection result cache together with its lifecycle hooks.
type ResultCache struct {
	Cache cache.Cache[*core.ProjectionResult]
	// Ping is nil for the in-process cache.
	Ping  func(ctx context.Context) error
	close func() error
}

func (c *ResultCache) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// OpenResultCache uses Redis when REDIS_ADDR is set so replicas share
// results, and an LRU registered with the manager otherwise.
func OpenResultCache(logger *log.Logger, cfg *config.Config, manager *cache.Manager) *ResultCache {
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rc := cache.NewRedisCache[*core.ProjectionResult](client, "patrimonio:", cfg.CacheTTL, logger)
		logger.Info("Using Redis result cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return &ResultCache{Cache: rc, Ping: rc.Ping, close: client.Close}
	}

	lru := cache.NewLRUCache[*core.ProjectionResult](cfg.CacheSize, cfg.CacheTTL)
	if manager != nil {
		manager.Register(lru)
	}
	logger.Info("Using in-process result cache", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return &ResultCache{Cache: lru}
}
