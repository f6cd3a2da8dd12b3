package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendtracker/internal/backend"
	"spendtracker/internal/categories"
	"spendtracker/internal/cli"
	"spendtracker/internal/config"
	apphttp "spendtracker/internal/http"
	applog "spendtracker/internal/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every deferred cleanup so a failing server still closes the
// backend before the process exits.
func run() error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		return err
	}

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", backendCfg.Type)
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	cats := categories.Load(cfg.CategoriesFile)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Ledger:             res.Ledger,
		Categories:         cats,
		Identities:         cfg.Identities,
		PaymentMethods:     cfg.PaymentMethods,
		SessionTTL:         cfg.SessionTTL,
		MaxSessions:        cfg.MaxSessions,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
		Ready:              res.Ready,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spendtracker server",
			"port", cfg.Port,
			"backend", backendCfg.Type,
			"publishing", res.Publishing,
			"categories", len(cats.List()),
			"log_level", cli.LevelOf(ctx, logger).String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
