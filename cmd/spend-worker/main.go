package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"spendtracker/internal/amqp"
	"spendtracker/internal/cli"
	"spendtracker/internal/config"
	applog "spendtracker/internal/log"
	"spendtracker/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentWorker)
	cfg := cli.MustLoadConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting spend-worker", "queue", cfg.AMQPQueue, "archive", cfg.ArchiveDBPath)

	repo, err := cli.InitSQLite(logger, cfg.ArchiveDBPath)
	if err != nil {
		logger.Error("Failed to initialize archive", "error", err)
		return err
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		return err
	}
	defer client.Close()

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	archiver := worker.NewArchiveWorker(repo)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeExpenseRecorded(gctx, archiver.HandleExpenseRecorded)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", "error", err)
		return err
	}
	logger.Info("Worker stopped gracefully")
	return nil
}
