package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr, redisPassword string, redisDB int) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

// Probe checks that both backing stores answer.
func (c *Clients) Probe(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (c *Clients) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			slog.Warn("Failed to close Redis client", "error", err)
		}
	}
	return c.DB.Close()
}

// Schema creates the tables used by the API. The unique index on
// payments.payment_intent_id is what makes webhook processing idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		auth_id TEXT NOT NULL UNIQUE,
		email TEXT,
		username TEXT NOT NULL,
		display_name TEXT,
		bio TEXT,
		profile_image_url TEXT,
		banner_image_url TEXT,
		payment_account_id TEXT,
		payment_onboarding_complete BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS profiles_username_lower_key ON profiles (lower(username))`,
	`CREATE INDEX IF NOT EXISTS profiles_payment_account_id_idx ON profiles (payment_account_id)`,
	`CREATE TABLE IF NOT EXISTS links (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		display_order INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS links_user_id_idx ON links (user_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		payment_intent_id TEXT NOT NULL,
		checkout_session_id TEXT,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		recipient_id UUID NOT NULL REFERENCES profiles(id),
		payer_email TEXT,
		platform_fee BIGINT,
		net_amount BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_payment_intent_id_key ON payments (payment_intent_id)`,
	`CREATE INDEX IF NOT EXISTS payments_recipient_id_idx ON payments (recipient_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		payment_id UUID PRIMARY KEY REFERENCES payments(id),
		published_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func (c *Clients) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	slog.Info("✅ Database schema is ready!")
	return nil
}
