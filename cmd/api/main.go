package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/illegalcall/linkbio/internal/api"
	"github.com/illegalcall/linkbio/internal/cache"
	"github.com/illegalcall/linkbio/internal/config"
	"github.com/illegalcall/linkbio/internal/events"
	"github.com/illegalcall/linkbio/internal/gateway"
	"github.com/illegalcall/linkbio/internal/identity"
	"github.com/illegalcall/linkbio/internal/payments"
	"github.com/illegalcall/linkbio/internal/repository"
	"github.com/illegalcall/linkbio/internal/storage"
	"github.com/illegalcall/linkbio/pkg/database"
	"github.com/illegalcall/linkbio/pkg/kafka"
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	// Load configuration
	cfg := config.LoadConfig()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("❌ Invalid configuration, refusing to start", "error", err)
		os.Exit(1)
	}
	for _, name := range cfg.Defaulted() {
		logger.Warn("⚠️ Payment setting not configured, using default", "setting", name)
	}
	feeBasisPoints, _ := cfg.Payments.FeeBasisPoints()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("✅ Connected to databases")

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to prepare database schema", "error", err)
		os.Exit(1)
	}

	// Payment events feed the notification worker
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
		if err != nil {
			logger.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, cfg.Kafka.Topic, logger)
		logger.Info("✅ Connected to Kafka")
	} else {
		logger.Info("Kafka disabled, tip notifications will not be published")
	}

	store, err := storage.NewLocalStorage(cfg.Storage.UploadDir, cfg.Storage.MaxSize)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	profiles := repository.NewProfileRepository(db.DB)
	ledger := repository.NewPaymentRepository(db.DB)
	profileCache := cache.NewProfileCache(db.Redis, cfg.Redis.ProfileTTL)
	gw := gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil, logger)
	metadata := payments.NewMetadataKeys(cfg.Payments.MetadataPrefix)

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Health:   db,
		Profiles: profiles,
		Links:    repository.NewLinkRepository(db.DB),
		Payments: ledger,
		Verifier: newVerifier(cfg.Identity, logger),
		Checkout: payments.NewCheckoutService(profiles, gw, payments.CheckoutConfig{
			FeeBasisPoints:  feeBasisPoints,
			MinChargeAmount: cfg.Payments.MinChargeAmount,
			Currency:        cfg.Payments.Currency,
			FrontendURL:     cfg.Server.FrontendURL,
			Metadata:        metadata,
		}, logger),
		Webhooks: payments.NewReconciler(gw, ledger, profiles, publisher, profileCache,
			payments.ReconcilerConfig{Currency: cfg.Payments.Currency, Metadata: metadata}, logger),
		Connect: payments.NewConnectService(profiles, gw, profileCache, payments.ConnectConfig{
			Country:     cfg.Stripe.ConnectCountry,
			FrontendURL: cfg.Server.FrontendURL,
		}, logger),
		Cache:   profileCache,
		Storage: store,
		Logger:  logger,
	})

	go func() {
		logger.Info("🚀 Server running", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := server.Start(); err != nil {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

func newVerifier(cfg config.IdentityConfig, logger *slog.Logger) identity.Verifier {
	if cfg.Mode == config.IdentityModeJWT {
		logger.Info("Verifying bearer tokens locally")
		return identity.NewJWTVerifier(cfg.JWTSecret)
	}
	logger.Info("Verifying bearer tokens with the auth server", "url", cfg.SupabaseURL)
	return identity.NewGoTrueVerifier(cfg.SupabaseURL, cfg.ServiceRoleKey, logger)
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
