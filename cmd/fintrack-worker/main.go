package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: "worker"})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	exporter := worker.NewExporter(repo, cfg.ExportDir)
	pruner := worker.NewPruner(cfg.LocalBackupDir(), cfg.BackupRetention)

	scheduler := worker.NewScheduler()
	if err := scheduler.AddJob(cfg.ExportSchedule, exporter); err != nil {
		logger.Error("Failed to register export job", "error", err, "schedule", cfg.ExportSchedule)
		os.Exit(1)
	}
	if err := scheduler.AddJob(cfg.PruneSchedule, pruner); err != nil {
		logger.Error("Failed to register prune job", "error", err, "schedule", cfg.PruneSchedule)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	defer scheduler.Stop()

	// write a fresh export at startup so the file exists before any event
	if err := scheduler.RunNow(exporter); err != nil {
		logger.Warn("Initial export failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeTransactionEvents(gctx, func(msg *amqp.TransactionEventMessage) error {
				// every change event refreshes the full export
				return exporter.Export(gctx)
			})
		})
		logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, running scheduled jobs only")
	}

	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	logger.Info("Worker started",
		"export_dir", cfg.ExportDir,
		"backup_dir", cfg.LocalBackupDir(),
		"retention", cfg.BackupRetention.String())

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
