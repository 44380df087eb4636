package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// Logging
	LogLevel string

	// Ledger
	DefaultUserID string
	SeedOnStartup bool

	// AMQP; an empty URL disables the sync relay
	AMQPURL        string
	AMQPExchange   string
	AMQPDirtyQueue string
	AMQPAckQueue   string

	// Sync relay
	SyncBatchSize       int
	SyncInterval        time.Duration
	SyncReannounceAfter time.Duration
}

func Load() *Config {
	return &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bbledger.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		DefaultUserID: getEnv("DEFAULT_USER_ID", "local"),
		SeedOnStartup: getEnvBool("SEED_ON_STARTUP", true),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "bbledger"),
		AMQPDirtyQueue: getEnv("AMQP_DIRTY_QUEUE", "ledger_dirty"),
		AMQPAckQueue:   getEnv("AMQP_ACK_QUEUE", "ledger_synced"),

		SyncBatchSize:       getEnvInt("SYNC_BATCH_SIZE", 50),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncReannounceAfter: getEnvDuration("SYNC_REANNOUNCE_AFTER", 5*time.Minute),
	}
}

// RelayEnabled reports whether an AMQP broker is configured.
func (c *Config) RelayEnabled() bool {
	return c.AMQPURL != ""
}

// Validate returns every problem found, joined into one error.
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if strings.TrimSpace(c.DefaultUserID) == "" {
		errors = append(errors, "default user id cannot be empty")
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
		if c.AMQPDirtyQueue == "" {
			errors = append(errors, "AMQP dirty queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPAckQueue == "" {
			errors = append(errors, "AMQP ack queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPDirtyQueue != "" && c.AMQPDirtyQueue == c.AMQPAckQueue {
			errors = append(errors, "AMQP dirty and ack queues must differ")
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SyncReannounceAfter < c.SyncInterval {
		errors = append(errors, fmt.Sprintf("invalid re-announce delay %v: must be at least the sync interval %v", c.SyncReannounceAfter, c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
