// Package bootstrap turns configuration into connected components for the
// CLI commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/client"
	"github.com/jmehdipour/billing-sandbox/internal/config"
	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/generator"
	"github.com/jmehdipour/billing-sandbox/internal/query"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
)

func GeneratorOptions(cfg config.GeneratorConfig) (generator.Options, error) {
	base, err := cfg.ParsedBaseDate()
	if err != nil {
		return generator.Options{}, err
	}
	opts := generator.DefaultOptions()
	opts.Seed = cfg.Seed
	opts.Customers = cfg.Customers
	opts.SubscriptionRatio = cfg.SubscriptionRatio
	opts.ChargeSuccessRate = cfg.ChargeSuccessRate
	opts.BaseDate = base
	opts.SignupWindowDays = cfg.SignupWindowDays
	return opts, nil
}

func Dataset(cfg config.GeneratorConfig) (*generator.Dataset, error) {
	opts, err := GeneratorOptions(cfg)
	if err != nil {
		return nil, err
	}
	return generator.Build(opts)
}

func SampleOptions(cfg config.SeedConfig) generator.SampleOptions {
	opts := generator.DefaultSampleOptions()
	opts.Seed = cfg.Seed
	opts.Users = cfg.Users
	opts.SignupDays = cfg.SignupDays
	return opts
}

func QueryOptions(cfg config.APIConfig) query.Options {
	return query.Options{
		LegacyCursorFallback: cfg.LegacyCursorFallback,
		LegacyHasMore:        cfg.LegacyHasMore,
		DefaultLimit:         cfg.DefaultLimit,
		MaxLimit:             cfg.MaxLimit,
	}
}

func ClientConfig(cfg config.LoaderConfig) client.Config {
	return client.Config{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		PageSize:      cfg.PageSize,
		TimeoutMs:     cfg.TimeoutMs,
		MaxAttempts:   cfg.MaxAttempts,
		FailThreshold: cfg.Breaker.FailThreshold,
		OpenForMs:     cfg.Breaker.OpenForMs,
		BaseDelay:     250 * time.Millisecond,
	}
}

func SQLOpts(cfg config.DatabaseConfig) (db.SQLOpts, error) {
	dialect, err := db.ParseDialect(cfg.Driver)
	if err != nil {
		return db.SQLOpts{}, err
	}
	return db.SQLOpts{
		Dialect:         dialect,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		PingTimeout:     cfg.PingTimeout,
		Attempts:        cfg.ConnectAttempts,
		RetryDelay:      cfg.RetryDelay,
	}, nil
}

// ConnectDatabase opens the configured database with retries. When every
// attempt fails it writes troubleshooting steps to stderr before returning
// the error.
func ConnectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger, stderr io.Writer) (*sqlx.DB, db.Dialect, error) {
	opts, err := SQLOpts(cfg)
	if err != nil {
		return nil, "", err
	}
	conn, err := db.ConnectWithRetry(ctx, opts, log)
	if err != nil {
		if errors.Is(err, db.ErrConnectExhausted) {
			fmt.Fprint(stderr, Troubleshooting(opts.Dialect))
		}
		return nil, "", err
	}
	return conn, opts.Dialect, nil
}

func Troubleshooting(d db.Dialect) string {
	switch d {
	case db.Postgres:
		return `
Troubleshooting steps:
1. Check if the container is running: docker compose ps
2. Check if PostgreSQL is ready: pg_isready -h <host> -p <port>
3. Check the database logs: docker compose logs <db-service>
4. Verify database.dsn (or BILLSB_DATABASE_DSN)
`
	case db.MySQL:
		return `
Troubleshooting steps:
1. Check if the container is running: docker compose ps
2. Check if MySQL is ready: mysqladmin ping -h <host> -P <port>
3. Check the database logs: docker compose logs <db-service>
4. Verify database.dsn (or BILLSB_DATABASE_DSN)
`
	default:
		return `
Troubleshooting steps:
1. Verify database.dsn (or BILLSB_DATABASE_DSN) points to a writable file
2. Check directory permissions for the database file
`
	}
}

// BillingWriters returns the relational store plus the ClickHouse mirror
// when enabled. The returned close func releases the mirror connection.
func BillingWriters(ctx context.Context, cfg config.Config, conn *sqlx.DB, dialect db.Dialect) ([]repository.BillingWriter, func(), error) {
	writers := []repository.BillingWriter{
		repository.NewBillingStore(conn, dialect, cfg.Loader.Schema, cfg.Loader.BatchSize),
	}
	if !cfg.ClickHouse.Enabled {
		return writers, func() {}, nil
	}

	ch, err := db.NewClickHouseConnection(ctx, db.ClickHouseOpts{
		DSN:          cfg.ClickHouse.DSN,
		MaxOpenConns: cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns: cfg.ClickHouse.MaxIdleConns,
		PingTimeout:  cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	writers = append(writers, repository.NewClickHouseMirror(ch, cfg.ClickHouse.Database))
	return writers, func() { _ = ch.Close() }, nil
}
