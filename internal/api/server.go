// Package api exposes the profile, link and payment endpoints over HTTP.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/config"
	"github.com/illegalcall/linkbio/internal/identity"
	"github.com/illegalcall/linkbio/internal/middleware"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/payments"
	"github.com/illegalcall/linkbio/internal/repository"
	"github.com/illegalcall/linkbio/internal/storage"
)

const (
	webhookPath   = "/api/payments/webhooks"
	healthTimeout = 2 * time.Second
)

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, amount, recipientHandle string) (*payments.CheckoutResult, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, signature string) (payments.Outcome, error)
}

type AccountOnboarder interface {
	Onboard(ctx context.Context, profile *models.Profile, email string) (string, error)
	Status(ctx context.Context, profile *models.Profile) (*models.AccountStatus, error)
}

// ProfileCache is the read-through cache in front of public profiles.
type ProfileCache interface {
	Get(ctx context.Context, username string) (*models.PublicProfile, error)
	Set(ctx context.Context, profile *models.PublicProfile) error
	Invalidate(ctx context.Context, usernames ...string) error
}

// Prober checks the backing stores for /healthz.
type Prober interface {
	Probe(ctx context.Context) error
}

// Deps carries everything the server wires into its routes.
type Deps struct {
	Config   *config.Config
	Health   Prober
	Profiles *repository.ProfileRepository
	Links    *repository.LinkRepository
	Payments *repository.PaymentRepository
	Verifier identity.Verifier
	Checkout CheckoutCreator
	Webhooks WebhookHandler
	Connect  AccountOnboarder
	Cache    ProfileCache
	Storage  storage.Storage
	Logger   *slog.Logger
}

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	health   Prober
	profiles *repository.ProfileRepository
	links    *repository.LinkRepository
	payments *repository.PaymentRepository
	verifier identity.Verifier
	checkout CheckoutCreator
	webhooks WebhookHandler
	connect  AccountOnboarder
	cache    ProfileCache
	storage  storage.Storage
	logger   *slog.Logger
}

func NewServer(deps Deps) *Server {
	cfg := deps.Config
	app := fiber.New(fiber.Config{
		AppName:      "linkbio",
		ErrorHandler: apperrors.ErrorHandler(deps.Logger, !cfg.IsProduction()),
		BodyLimit:    int(cfg.Storage.MaxSize) + 1<<20,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
		// Gateway deliveries arrive in bursts and are retried on 429.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == webhookPath
		},
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		health:   deps.Health,
		profiles: deps.Profiles,
		links:    deps.Links,
		payments: deps.Payments,
		verifier: deps.Verifier,
		checkout: deps.Checkout,
		webhooks: deps.Webhooks,
		connect:  deps.Connect,
		cache:    deps.Cache,
		storage:  deps.Storage,
		logger:   deps.Logger,
	}

	// Routes
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Static("/uploads", s.cfg.Storage.UploadDir)

	api := s.app.Group("/api")
	api.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("linkbio API is running")
	})

	// Public routes
	api.Get("/public/profile/:username", s.handlePublicProfile)
	api.Post("/payments/checkout-sessions", s.handleCreateCheckout)
	api.Post("/payments/webhooks", s.handleWebhook)

	// Authenticated routes
	gate := middleware.AccessGate(s.verifier, s.profiles, s.logger)

	users := api.Group("/users", gate)
	users.Get("/me", s.handleGetMe)
	users.Post("/profile", s.handleUpsertProfile)
	users.Post("/me/images", s.handleUploadImage)

	links := api.Group("/links", gate)
	links.Get("/", s.handleListLinks)
	links.Post("/", s.handleCreateLink)
	links.Put("/:linkId", s.handleUpdateLink)
	links.Delete("/:linkId", s.handleDeleteLink)

	// Gated per route; the checkout and webhook routes share this prefix.
	api.Post("/payments/connect/onboard", gate, s.handleConnectOnboard)
	api.Get("/payments/connect/status", gate, s.handleConnectStatus)
	api.Get("/payments/received", gate, s.handleListReceived)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := s.health.Probe(ctx); err != nil {
		s.logger.Error("Health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) invalidateProfiles(ctx context.Context, usernames ...string) {
	if err := s.cache.Invalidate(ctx, usernames...); err != nil {
		s.logger.Warn("Failed to invalidate profile cache", "usernames", usernames, "error", err)
	}
}
