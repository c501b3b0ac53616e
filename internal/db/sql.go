package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrConnectExhausted is returned when every connection attempt failed.
var ErrConnectExhausted = errors.New("database connection attempts exhausted")

type SQLOpts struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	Attempts        int           // ConnectWithRetry only, default 5
	RetryDelay      time.Duration // ConnectWithRetry only
}

// Open opens a *sqlx.DB for the configured dialect with pool limits applied
// and verifies it with a ping.
func Open(ctx context.Context, opts SQLOpts) (*sqlx.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("empty %s DSN", opts.Dialect)
	}
	db, err := sqlx.Open(opts.Dialect.DriverName(), opts.DSN)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// ConnectWithRetry calls Open up to opts.Attempts times, sleeping
// opts.RetryDelay between failures. When all attempts fail the returned
// error wraps both ErrConnectExhausted and the last driver error.
func ConnectWithRetry(ctx context.Context, opts SQLOpts, log *zap.Logger) (*sqlx.DB, error) {
	return connectWithRetry(ctx, opts, log, Open)
}

type openFunc func(context.Context, SQLOpts) (*sqlx.DB, error)

func connectWithRetry(ctx context.Context, opts SQLOpts, log *zap.Logger, open openFunc) (*sqlx.DB, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := max(opts.RetryDelay, 0)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		log.Info("connecting to database",
			zap.String("dialect", string(opts.Dialect)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts))

		db, err := open(ctx, opts)
		if err == nil {
			log.Info("database connected", zap.Int("attempt", attempt))
			return db, nil
		}
		lastErr = err
		log.Warn("database connection failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectExhausted, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectExhausted, attempts, lastErr)
}
