package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	DataBackend    string
	SQLiteDBPath   string
	LifeEventsFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Result cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	CacheSize     int

	// Simulation
	DefaultSamples    int
	MaxSamples        int
	MaxHorizonYears   int
	SimulationWorkers int
	SimulationTimeout time.Duration

	// Workers
	RefreshInterval    time.Duration
	QueueSweepInterval time.Duration

	// Google Sheets band export
	GoogleSpreadsheetID      string
	GoogleBandsSheet         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Observability
	MetricsNamespace string
	LogLevel         string
	LogFormat        string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/patrimonio.db"),

		// Seed for the memory backend, one "year;kind;amount;name" per line.
		LifeEventsFile: getEnv("LIFE_EVENTS_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "patrimonio"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "projection_jobs"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize:     getEnvInt("CACHE_SIZE", 256),

		DefaultSamples:    getEnvInt("SIMULATION_DEFAULT_SAMPLES", 1000),
		MaxSamples:        getEnvInt("SIMULATION_MAX_SAMPLES", 100000),
		MaxHorizonYears:   getEnvInt("SIMULATION_MAX_HORIZON", 80),
		SimulationWorkers: getEnvInt("SIMULATION_WORKERS", 0),
		SimulationTimeout: getEnvDuration("SIMULATION_TIMEOUT", 30*time.Second),

		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", time.Hour),
		QueueSweepInterval: getEnvDuration("QUEUE_SWEEP_INTERVAL", 2*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleBandsSheet:         getEnv("GOOGLE_BANDS_SHEET", "Proiezioni"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "patrimonio"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("invalid redis db %d: must not be negative", c.RedisDB))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.MaxSamples < 1 {
		errors = append(errors, fmt.Sprintf("invalid max samples %d: must be at least 1", c.MaxSamples))
	}
	if c.DefaultSamples < 1 || c.DefaultSamples > c.MaxSamples {
		errors = append(errors, fmt.Sprintf("invalid default samples %d: must be between 1 and %d", c.DefaultSamples, c.MaxSamples))
	}
	if c.MaxHorizonYears < 1 || c.MaxHorizonYears > 200 {
		errors = append(errors, fmt.Sprintf("invalid max horizon %d: must be between 1 and 200 years", c.MaxHorizonYears))
	}
	if c.SimulationWorkers < 0 {
		errors = append(errors, fmt.Sprintf("invalid simulation workers %d: must not be negative", c.SimulationWorkers))
	}
	if c.SimulationTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid simulation timeout %v: must be at least 1 second", c.SimulationTimeout))
	}

	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}
	if c.QueueSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid queue sweep interval %v: must be at least 1 second", c.QueueSweepInterval))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleBandsSheet == "" {
			errors = append(errors, "Google bands sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for band export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AMQPEnabled reports whether projection jobs go through RabbitMQ.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// ExportEnabled reports whether results are exported to Google Sheets.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
