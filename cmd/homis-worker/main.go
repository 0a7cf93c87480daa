package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zivstay/Homis-sub000/internal/amqp"
	"github.com/zivstay/Homis-sub000/internal/config"
	"github.com/zivstay/Homis-sub000/internal/export/google"
	sqlledger "github.com/zivstay/Homis-sub000/internal/ledger/sqlite"
	applog "github.com/zivstay/Homis-sub000/internal/log"
	"github.com/zivstay/Homis-sub000/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo}).WithComponent("export-worker")
	applog.SetDefault(logger)

	logger.Info("Starting homis-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.ExportSpreadsheetID == "" {
		logger.Error("Spreadsheet export disabled - no EXPORT_SPREADSHEET_ID provided, nothing to do")
		os.Exit(1)
	}

	// The worker reads the same SQLite ledger the API writes.
	store, err := sqlledger.NewStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite ledger", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := google.NewFromEnv(ctx, cfg.ExportSpreadsheetID, cfg.ExportSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.ExportSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(store, sheetsClient, cfg.ExportBatchSize)

	// Drain whatever settled while the worker was down.
	if err := exportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup export check failed", "error", err)
		// Don't exit - the periodic sweep will retry.
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeEvents(ctx, exportWorker.HandleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := exportWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic export sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
