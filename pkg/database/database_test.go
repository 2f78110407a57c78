package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClients(t *testing.T) (*Clients, sqlmock.Sqlmock, *miniredis.Miniredis) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	miniRedis, err := miniredis.Run()
	require.NoError(t, err)
	clients := &Clients{
		DB:    sqlx.NewDb(mockDB, "sqlmock"),
		Redis: redis.NewClient(&redis.Options{Addr: miniRedis.Addr()}),
	}
	return clients, mock, miniRedis
}

func TestEnsureSchema(t *testing.T) {
	clients, mock, miniRedis := setupClients(t)
	defer miniRedis.Close()

	for _, stmt := range Schema {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, clients.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaStopsOnError(t *testing.T) {
	clients, mock, miniRedis := setupClients(t)
	defer miniRedis.Close()

	mock.ExpectExec(regexp.QuoteMeta(Schema[0])).WillReturnError(errors.New("permission denied"))

	err := clients.EnsureSchema(context.Background())
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaDeclaresIdempotencyIndex(t *testing.T) {
	var found bool
	for _, stmt := range Schema {
		if regexp.MustCompile(`CREATE UNIQUE INDEX .* payments_payment_intent_id_key ON payments \(payment_intent_id\)`).MatchString(stmt) {
			found = true
		}
	}
	assert.True(t, found, "payments must be unique per payment intent")
}

func TestProbe(t *testing.T) {
	clients, mock, miniRedis := setupClients(t)

	mock.ExpectPing()
	assert.NoError(t, clients.Probe(context.Background()))

	miniRedis.Close()
	mock.ExpectPing()
	err := clients.Probe(context.Background())
	assert.ErrorContains(t, err, "redis")

	mock.ExpectPing().WillReturnError(errors.New("db down"))
	err = clients.Probe(context.Background())
	assert.ErrorContains(t, err, "postgres")
}
