// Package config provides configuration for the reconciliation system. It
// loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Ledger    LedgerConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Anthropic AnthropicConfig
	Ingest    IngestConfig
	Debug     bool
}

// LedgerConfig represents ledger API configuration.
type LedgerConfig struct {
	APIURL       string
	APIToken     string
	LookbackDays int
	StaleDays    int
}

// DatabaseConfig represents the pending action store configuration.
type DatabaseConfig struct {
	Path string
}

// TelegramConfig represents stale action notification configuration.
// Both fields empty disables notifications.
type TelegramConfig struct {
	Token  string
	ChatID string
}

// AnthropicConfig represents LLM extraction configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// IngestConfig represents the email ingest server configuration.
type IngestConfig struct {
	Token             string
	AcceptedEmail     string
	ListenAddr        string
	PayeeMappingPath  string
	ReconcileInterval time.Duration
}

// Load loads configuration from environment variables. It automatically
// loads a .env file from the current directory when one exists; a custom
// path can be given instead.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	lookbackDays, err := parseIntEnv("LOOKBACK_DAYS", 180)
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKBACK_DAYS: %w", err)
	}

	staleDays, err := parseIntEnv("STALE_THRESHOLD_DAYS", 14)
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_THRESHOLD_DAYS: %w", err)
	}

	reconcileInterval, err := parseDurationEnv("RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
	}

	config := &Config{
		Ledger: LedgerConfig{
			APIURL:       getEnvOrDefault("LEDGER_API_URL", "https://dev.lunchmoney.app"),
			APIToken:     os.Getenv("LEDGER_API_TOKEN"),
			LookbackDays: lookbackDays,
			StaleDays:    staleDays,
		},
		Database: DatabaseConfig{
			Path: getEnvOrDefault("DATABASE_PATH", "./data/ledgermail.db"),
		},
		Telegram: TelegramConfig{
			Token:  os.Getenv("TELEGRAM_TOKEN"),
			ChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Anthropic: AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  os.Getenv("ANTHROPIC_MODEL"),
		},
		Ingest: IngestConfig{
			Token:             os.Getenv("INGEST_TOKEN"),
			AcceptedEmail:     os.Getenv("ACCEPTED_EMAIL"),
			ListenAddr:        getEnvOrDefault("LISTEN_ADDR", ":8080"),
			PayeeMappingPath:  os.Getenv("PAYEE_MAPPING"),
			ReconcileInterval: reconcileInterval,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate checks that the named configuration keys are set. Callers pass
// the keys their command actually needs.
func (c *Config) Validate(required ...string) error {
	values := map[string]string{
		"LEDGER_API_TOKEN":  c.Ledger.APIToken,
		"LEDGER_API_URL":    c.Ledger.APIURL,
		"DATABASE_PATH":     c.Database.Path,
		"TELEGRAM_TOKEN":    c.Telegram.Token,
		"TELEGRAM_CHAT_ID":  c.Telegram.ChatID,
		"ANTHROPIC_API_KEY": c.Anthropic.APIKey,
		"INGEST_TOKEN":      c.Ingest.Token,
		"ACCEPTED_EMAIL":    c.Ingest.AcceptedEmail,
		"LISTEN_ADDR":       c.Ingest.ListenAddr,
	}

	var missing []string
	for _, key := range required {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a
// default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

// parseDurationEnv parses a duration environment variable with a default.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(value)
}
