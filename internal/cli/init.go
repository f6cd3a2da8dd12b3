// Package cli holds the start-up steps shared by cmd/spendtracker and
// cmd/spend-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendtracker/internal/config"
	applog "spendtracker/internal/log"
	"spendtracker/internal/storage"
)

// SetupLogger builds the process logger at level and installs it as the slog
// default. An unknown level falls back to info with a warning.
func SetupLogger(out io.Writer, level string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.New(applog.Config{Level: lvl, Output: out})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", "error", err)
	}
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration and runs validate on it.
func LoadConfig(validate func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig that logs and exits on failure.
func MustLoadConfig(logger *applog.Logger, validate func(*config.Config) error) *config.Config {
	cfg, err := LoadConfig(validate)
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens (and migrates) the SQLite database at dbPath.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite at %s: %w", dbPath, err)
	}
	logger.Info("SQLite database ready", "path", dbPath)
	return repo, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged. Call stop to release the signal handler.
func SignalContext(parent context.Context, logger *applog.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// LevelOf reports the effective level of logger, for start-up banners.
func LevelOf(ctx context.Context, logger *applog.Logger) slog.Level {
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if logger.Enabled(ctx, l) {
			return l
		}
	}
	return slog.LevelError
}
