package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable for the server, the CLI client and the worker.
type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Dual-mode client
	APIBaseURL    string
	RemoteTimeout time.Duration
	ProbeTimeout  time.Duration

	// Local file store
	LocalDataDir    string
	BackupRetention time.Duration

	// AMQP (optional; empty URL disables events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ExportDir      string
	ExportSchedule string
	PruneSchedule  string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8000"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		APIBaseURL:    getEnv("API_BASE_URL", "http://127.0.0.1:8000"),
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", 3*time.Second),
		ProbeTimeout:  getEnvDuration("PROBE_TIMEOUT", time.Second),

		LocalDataDir:    getEnv("LOCAL_DATA_DIR", defaultDataDir()),
		BackupRetention: getEnvDuration("BACKUP_RETENTION", 30*24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		ExportDir:      getEnv("EXPORT_DIR", "./data/exports"),
		ExportSchedule: getEnv("EXPORT_SCHEDULE", "0 0 3 * * *"),
		PruneSchedule:  getEnv("PRUNE_SCHEDULE", "0 30 3 * * *"),
	}
}

// Validate checks the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.APIBaseURL != "" {
		if u, err := url.Parse(c.APIBaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	} else {
		errs = append(errs, "API base URL cannot be empty")
	}

	if c.RemoteTimeout < 100*time.Millisecond || c.RemoteTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid remote timeout %v: must be between 100ms and 1m", c.RemoteTimeout))
	}
	if c.ProbeTimeout < 100*time.Millisecond || c.ProbeTimeout > 10*time.Second {
		errs = append(errs, fmt.Sprintf("invalid probe timeout %v: must be between 100ms and 10s", c.ProbeTimeout))
	}

	if c.LocalDataDir == "" {
		errs = append(errs, "local data directory cannot be empty")
	}
	if c.BackupRetention < time.Hour {
		errs = append(errs, fmt.Sprintf("invalid backup retention %v: must be at least 1 hour", c.BackupRetention))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// LocalStorePath is where the fallback JSON store lives.
func (c *Config) LocalStorePath() string {
	return filepath.Join(c.LocalDataDir, "local_transactions.json")
}

// LocalBackupDir is where pre-write snapshots of the local store go.
func (c *Config) LocalBackupDir() string {
	return filepath.Join(c.LocalDataDir, "backups")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fintrack"
	}
	return filepath.Join(home, ".fintrack")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
