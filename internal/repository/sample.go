package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// sampleTables lists the product-analytics tables in creation order.
var sampleTables = []string{"users", "subscriptions", "events", "stripe_charges"}

type SampleRepository interface {
	// CountUsers returns 0 when the users table does not exist yet.
	CountUsers(ctx context.Context) (int, error)
	Drop(ctx context.Context) error
	CreateTables(ctx context.Context) error
	InsertUsers(ctx context.Context, rows []model.User) error
	InsertSubscriptions(ctx context.Context, rows []model.UserSubscription) error
	InsertEvents(ctx context.Context, rows []model.Event) error
	InsertCharges(ctx context.Context, rows []model.StripeCharge) error
	Summary(ctx context.Context) (SampleSummary, error)
}

type SampleRepositoryImpl struct {
	db        *sqlx.DB
	dialect   db.Dialect
	chunkSize int
}

var _ SampleRepository = (*SampleRepositoryImpl)(nil)

func NewSampleRepository(conn *sqlx.DB, dialect db.Dialect, chunkSize int) *SampleRepositoryImpl {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &SampleRepositoryImpl{db: conn, dialect: dialect, chunkSize: chunkSize}
}

// tableExistsQuery looks name up in the connection's current schema only.
func tableExistsQuery(d db.Dialect) string {
	switch d {
	case db.SQLite:
		return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	case db.MySQL:
		return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	default:
		return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	}
}

func (r *SampleRepositoryImpl) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(tableExistsQuery(r.dialect)), name); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SampleRepositoryImpl) CountUsers(ctx context.Context) (int, error) {
	ok, err := r.tableExists(ctx, "users")
	if err != nil || !ok {
		return 0, err
	}
	var n int
	err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

// Drop removes the sample tables, dependents first.
func (r *SampleRepositoryImpl) Drop(ctx context.Context) error {
	suffix := " CASCADE"
	if r.dialect == db.SQLite {
		suffix = ""
	}
	for i := len(sampleTables) - 1; i >= 0; i-- {
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sampleTables[i]+suffix); err != nil {
			return fmt.Errorf("drop %s: %w", sampleTables[i], err)
		}
	}
	return nil
}

func (r *SampleRepositoryImpl) ddl() []string {
	ts, js, id := "TIMESTAMP", "JSONB", "BIGINT"
	switch r.dialect {
	case db.MySQL:
		ts, js = "DATETIME", "JSON"
	case db.SQLite:
		js, id = "TEXT", "INTEGER"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
    id ` + id + ` PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    name VARCHAR(255),
    company VARCHAR(255),
    created_at ` + ts + ` NOT NULL,
    activated_at ` + ts + ` NULL,
    plan VARCHAR(50)
)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
    id ` + id + ` PRIMARY KEY,
    user_id ` + id + ` REFERENCES users(id),
    stripe_subscription_id VARCHAR(255),
    plan VARCHAR(50),
    status VARCHAR(50),
    mrr_cents INTEGER,
    started_at ` + ts + ` NULL,
    canceled_at ` + ts + ` NULL,
    created_at ` + ts + ` NULL
)`,
		`CREATE TABLE IF NOT EXISTS events (
    id ` + id + ` PRIMARY KEY,
    user_id ` + id + ` REFERENCES users(id),
    event_name VARCHAR(255),
    event_properties ` + js + `,
    created_at ` + ts + ` NULL
)`,
		`CREATE TABLE IF NOT EXISTS stripe_charges (
    id VARCHAR(255) PRIMARY KEY,
    customer_id VARCHAR(255),
    amount_cents INTEGER,
    status VARCHAR(50),
    created_at ` + ts + ` NULL
)`,
	}
}

func (r *SampleRepositoryImpl) CreateTables(ctx context.Context) error {
	for i, stmt := range r.ddl() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", sampleTables[i], err)
		}
	}
	return nil
}

func (r *SampleRepositoryImpl) InsertUsers(ctx context.Context, rows []model.User) error {
	return insertBatch(ctx, r.db, r.chunkSize, `
		INSERT INTO users (id, email, name, company, created_at, activated_at, plan)
		VALUES (:id, :email, :name, :company, :created_at, :activated_at, :plan)`, rows)
}

func (r *SampleRepositoryImpl) InsertSubscriptions(ctx context.Context, rows []model.UserSubscription) error {
	return insertBatch(ctx, r.db, r.chunkSize, `
		INSERT INTO subscriptions (id, user_id, stripe_subscription_id, plan, status, mrr_cents, started_at, canceled_at, created_at)
		VALUES (:id, :user_id, :stripe_subscription_id, :plan, :status, :mrr_cents, :started_at, :canceled_at, :created_at)`, rows)
}

type eventRow struct {
	model.Event
	PropertiesJSON string `db:"event_properties"`
}

func (r *SampleRepositoryImpl) InsertEvents(ctx context.Context, rows []model.Event) error {
	out := make([]eventRow, len(rows))
	for i, e := range rows {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return err
		}
		out[i] = eventRow{Event: e, PropertiesJSON: string(props)}
	}
	return insertBatch(ctx, r.db, r.chunkSize, `
		INSERT INTO events (id, user_id, event_name, event_properties, created_at)
		VALUES (:id, :user_id, :event_name, :event_properties, :created_at)`, out)
}

func (r *SampleRepositoryImpl) InsertCharges(ctx context.Context, rows []model.StripeCharge) error {
	return insertBatch(ctx, r.db, r.chunkSize, `
		INSERT INTO stripe_charges (id, customer_id, amount_cents, status, created_at)
		VALUES (:id, :customer_id, :amount_cents, :status, :created_at)`, rows)
}

// insertBatch writes rows with sqlx batch named inserts, chunked, in one
// transaction.
func insertBatch[T any](ctx context.Context, conn *sqlx.DB, chunkSize int, query string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return withTx(ctx, conn, nil, func(tx *sqlx.Tx) error {
		for start := 0; start < len(rows); start += chunkSize {
			end := min(start+chunkSize, len(rows))
			if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

type SampleSummary struct {
	Users               int
	Activated           int
	Paid                int // users with a plan
	ActiveSubscriptions int
	Events              int
	Charges             int
	MRR                 decimal.Decimal
}

// ActivationRate is the percentage of users that activated.
func (s SampleSummary) ActivationRate() float64 {
	if s.Users == 0 {
		return 0
	}
	return float64(s.Activated) / float64(s.Users) * 100
}

// ConversionRate is the percentage of activated users that picked a plan.
func (s SampleSummary) ConversionRate() float64 {
	if s.Activated == 0 {
		return 0
	}
	return float64(s.Paid) / float64(s.Activated) * 100
}

func (r *SampleRepositoryImpl) Summary(ctx context.Context) (SampleSummary, error) {
	var s SampleSummary
	counts := []struct {
		dst *int
		q   string
	}{
		{&s.Users, `SELECT COUNT(*) FROM users`},
		{&s.Activated, `SELECT COUNT(*) FROM users WHERE activated_at IS NOT NULL`},
		{&s.Paid, `SELECT COUNT(*) FROM users WHERE plan IS NOT NULL`},
		{&s.ActiveSubscriptions, `SELECT COUNT(*) FROM subscriptions WHERE status = 'active'`},
		{&s.Events, `SELECT COUNT(*) FROM events`},
		{&s.Charges, `SELECT COUNT(*) FROM stripe_charges`},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dst, c.q); err != nil {
			return SampleSummary{}, err
		}
	}

	var cents int64
	if err := r.db.GetContext(ctx, &cents, `SELECT COALESCE(SUM(mrr_cents), 0) FROM subscriptions WHERE status = 'active'`); err != nil {
		return SampleSummary{}, err
	}
	s.MRR = decimal.New(cents, -2)
	return s, nil
}
