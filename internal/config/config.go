package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hisab/internal/core"
	"hisab/internal/log"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	SeedFile     string

	// AMQP; change notifications are disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Access
	PINHash    string
	JWTSecret  string
	SessionTTL time.Duration
	ReadOnly   bool

	CacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// DefaultInitiationDate is the YYYY-MM-DD date restored by a full reset.
	DefaultInitiationDate string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/hisab.db"),
		SeedFile:     getEnv("SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "hisab"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_dataset"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 3),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", time.Minute),

		PINHash:    getEnv("PIN_HASH", ""),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: getEnvDuration("SESSION_TTL", 12*time.Hour),
		ReadOnly:   getEnvBool("READ_ONLY", false),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", log.FormatText),

		DefaultInitiationDate: getEnv("DEFAULT_INITIATION_DATE", core.DefaultInitiationDate.String()),
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

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendMemory, BackendSQLite))
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("seed file '%s' is not readable: %v", c.SeedFile, err))
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

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 || c.SyncBatchSize > 16 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be between 1 and 16", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.PINHash != "" {
		if !strings.HasPrefix(c.PINHash, "$2") {
			errors = append(errors, "PIN hash must be a bcrypt hash")
		}
		if len(c.JWTSecret) < 16 {
			errors = append(errors, "JWT secret must be at least 16 characters when a PIN is set")
		}
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case log.FormatText, log.FormatJSON, log.FormatPretty:
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text, json or pretty", c.LogFormat))
	}

	if _, err := core.ParseDate(c.DefaultInitiationDate); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default initiation date: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// MirrorEnabled reports whether a Google spreadsheet is configured.
func (c *Config) MirrorEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// InitiationDate returns the parsed DefaultInitiationDate, falling back to
// the built-in default.
func (c *Config) InitiationDate() core.Date {
	d, err := core.ParseDate(c.DefaultInitiationDate)
	if err != nil {
		return core.DefaultInitiationDate
	}
	return d
}

// LoggerConfig builds the log configuration for component.
func (c *Config) LoggerConfig(component string) log.Config {
	return log.Config{
		Level:     log.ParseLevel(c.LogLevel),
		Format:    strings.ToLower(c.LogFormat),
		Component: component,
	}
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
