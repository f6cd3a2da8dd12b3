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

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath  string
	ArchiveDBPath string

	// AMQP (optional for the web app, required by the worker)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	// Wizard
	CategoriesFile string
	Identities     []string
	PaymentMethods []string

	// Sessions and limits
	SessionTTL         time.Duration
	MaxSessions        int
	RateLimitPerMinute int
	SecureCookies      bool

	LogLevel string
}

var (
	validBackends  = []string{"memory", "sheets", "sqlite"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("data_backend", "memory")
	v.SetDefault("sqlite_db_path", "./data/spendtracker.db")
	v.SetDefault("archive_db_path", "./data/archive.db")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "spendtracker")
	v.SetDefault("amqp_queue", "expense_recorded")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_sheet_name", "Sheet1")
	v.SetDefault("google_service_account_file", "")
	v.SetDefault("google_service_account_json", "")
	v.SetDefault("google_oauth_client_file", "")
	v.SetDefault("google_oauth_token_file", "")
	v.SetDefault("categories_file", "categories.json")
	v.SetDefault("identities", "Vikki,Sneha")
	v.SetDefault("payment_methods", "BHIM,Google Pay,Cash")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("max_sessions", 1000)
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("secure_cookies", false)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// file (any format viper understands) its values sit below the environment.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		DataBackend: strings.ToLower(strings.TrimSpace(v.GetString("data_backend"))),

		SQLiteDBPath:  v.GetString("sqlite_db_path"),
		ArchiveDBPath: v.GetString("archive_db_path"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleSheetName:          v.GetString("google_sheet_name"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleOAuthClientFile:    v.GetString("google_oauth_client_file"),
		GoogleOAuthTokenFile:     v.GetString("google_oauth_token_file"),

		CategoriesFile: v.GetString("categories_file"),
		Identities:     splitList(v.GetString("identities")),
		PaymentMethods: splitList(v.GetString("payment_methods")),

		SessionTTL:         durationOr(v.GetString("session_ttl"), 12*time.Hour),
		MaxSessions:        intOr(v.GetString("max_sessions"), 1000),
		RateLimitPerMinute: intOr(v.GetString("rate_limit_per_minute"), 60),
		SecureCookies:      v.GetBool("secure_cookies"),

		LogLevel: strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
	}
	return cfg, nil
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
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
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

	if c.DataBackend == "sheets" {
		errors = append(errors, c.validateSheets()...)
	}

	if len(c.Identities) == 0 {
		errors = append(errors, "at least one identity is required (IDENTITIES)")
	}
	if len(c.PaymentMethods) == 0 {
		errors = append(errors, "at least one payment method is required (PAYMENT_METHODS)")
	}
	if c.CategoriesFile == "" {
		errors = append(errors, "categories file path cannot be empty")
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the archive worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the worker")
	}
	if c.ArchiveDBPath == "" {
		errors = append(errors, "archive database path cannot be empty")
	} else if msg := ensureDir(c.ArchiveDBPath); msg != "" {
		errors = append(errors, msg)
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using sheets backend")
	}

	hasClient := c.GoogleOAuthClientFile != ""
	hasToken := c.GoogleOAuthTokenFile != ""
	if hasClient != hasToken {
		errors = append(errors, "GOOGLE_OAUTH_CLIENT_FILE and GOOGLE_OAUTH_TOKEN_FILE must be provided together")
	}

	for _, f := range []struct{ label, path string }{
		{"Google service account file", c.GoogleServiceAccountFile},
		{"Google OAuth client file", c.GoogleOAuthClientFile},
		{"Google OAuth token file", c.GoogleOAuthTokenFile},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("%s does not exist: %s", f.label, f.path))
		}
	}
	return errors
}

// ensureDir creates the parent directory of path if needed and returns a
// validation message on failure.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("cannot create database directory '%s': %v", dir, err)
		}
	}
	return ""
}

// splitList parses a comma-separated list, dropping blanks and duplicates.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func intOr(value string, def int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return i
	}
	return def
}

func durationOr(value string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
		return d
	}
	return def
}
