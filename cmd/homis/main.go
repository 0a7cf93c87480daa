package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zivstay/Homis-sub000/internal/amqp"
	"github.com/zivstay/Homis-sub000/internal/config"
	apphttp "github.com/zivstay/Homis-sub000/internal/http"
	"github.com/zivstay/Homis-sub000/internal/ledger"
	memledger "github.com/zivstay/Homis-sub000/internal/ledger/memory"
	sqlledger "github.com/zivstay/Homis-sub000/internal/ledger/sqlite"
	applog "github.com/zivstay/Homis-sub000/internal/log"
	"github.com/zivstay/Homis-sub000/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store ledger.Store
	switch cfg.LedgerBackend {
	case "sqlite":
		sqlStore, err := sqlledger.NewStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite ledger", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = sqlStore
		logger.Info("Initialized SQLite ledger", "path", cfg.SQLiteDBPath)
	default:
		store = memledger.NewStore()
		logger.Info("Initialized in-memory ledger")
	}
	defer store.Close()

	// Events are optional: without AMQP the ledger still works, only the
	// spreadsheet export loses its fast path.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	engine := services.NewEngine(store, events)
	aggregator := services.NewAggregator(store)

	srv := apphttp.NewServer(":"+cfg.Port, engine, aggregator)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting homis server", "port", cfg.Port, "backend", cfg.LedgerBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
