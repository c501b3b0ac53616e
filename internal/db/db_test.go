package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"postgres", "mysql", "sqlite", "clickhouse"} {
		d, err := ParseDialect(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(d))
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestDialect_Qualify(t *testing.T) {
	assert.Equal(t, "stripe.customers", Postgres.Qualify("stripe", "customers"))
	assert.Equal(t, "stripe__customers", MySQL.Qualify("stripe", "customers"))
	assert.Equal(t, "stripe__customers", SQLite.Qualify("stripe", "customers"))
	assert.Equal(t, "users", Postgres.Qualify("", "users"))
	assert.NotEqual(t, "stripe_charges", SQLite.Qualify("stripe", "charges"))
}

func TestDialect_DriverName(t *testing.T) {
	assert.Equal(t, "pgx", Postgres.DriverName())
	assert.Equal(t, "mysql", MySQL.DriverName())
	assert.Equal(t, "sqlite", SQLite.DriverName())
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	conn, err := Open(context.Background(), SQLOpts{Dialect: SQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	defer conn.Close()

	var one int
	require.NoError(t, conn.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), SQLOpts{Dialect: Postgres})
	assert.ErrorContains(t, err, "empty postgres DSN")
}

func TestConnectWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	open := func(ctx context.Context, opts SQLOpts) (*sqlx.DB, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return Open(ctx, SQLOpts{Dialect: SQLite, DSN: ":memory:"})
	}

	conn, err := connectWithRetry(context.Background(), SQLOpts{Dialect: SQLite, Attempts: 5}, zap.NewNop(), open)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetry_Exhausted(t *testing.T) {
	calls := 0
	refused := errors.New("connection refused")
	open := func(context.Context, SQLOpts) (*sqlx.DB, error) {
		calls++
		return nil, refused
	}

	_, err := connectWithRetry(context.Background(), SQLOpts{Dialect: Postgres, Attempts: 4}, zap.NewNop(), open)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectExhausted)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 4, calls)
}

func TestConnectWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	open := func(context.Context, SQLOpts) (*sqlx.DB, error) {
		cancel()
		return nil, errors.New("connection refused")
	}

	_, err := connectWithRetry(ctx, SQLOpts{Dialect: Postgres, Attempts: 3, RetryDelay: time.Hour}, zap.NewNop(), open)
	assert.ErrorIs(t, err, ErrConnectExhausted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRedisClient_DisabledWithoutAddr(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), RedisOpts{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
}
