package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/illegalcall/linkbio/internal/config"
	"github.com/illegalcall/linkbio/internal/notify"
	"github.com/illegalcall/linkbio/internal/repository"
	"github.com/illegalcall/linkbio/internal/worker"
	"github.com/illegalcall/linkbio/pkg/database"
	"github.com/illegalcall/linkbio/pkg/kafka"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	// Load configuration
	cfg := config.LoadConfig()
	if !cfg.Kafka.Enabled {
		slog.Error("KAFKA_ENABLED is false, nothing to consume")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("✅ Connected to databases")

	notifier, err := notify.NewSMTPNotifier(cfg.Email, slog.Default())
	if err != nil {
		slog.Error("Failed to configure email notifications", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Create and start worker
	w := worker.NewWorker(cfg.Kafka, consumer, repository.NewProfileRepository(db.DB), notifier, slog.Default())
	if err := w.Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
	slog.Info("🛑 Worker stopped")
}
