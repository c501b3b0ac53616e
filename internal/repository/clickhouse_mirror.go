package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmoiron/sqlx"
)

// ClickHouseMirror appends synced records to ReplacingMergeTree tables.
// Re-syncs add new versions; merges keep the one with the latest synced_at.
type ClickHouseMirror struct {
	ch       *sqlx.DB // ClickHouse connection
	database string
	now      func() time.Time
}

var _ BillingWriter = (*ClickHouseMirror)(nil)

func NewClickHouseMirror(ch *sqlx.DB, database string) *ClickHouseMirror {
	return &ClickHouseMirror{ch: ch, database: database, now: time.Now}
}

func (m *ClickHouseMirror) Target() string { return string(db.ClickHouse) }

func (m *ClickHouseMirror) EnsureSchema(ctx context.Context) error {
	if m.database != "" {
		if _, err := m.ch.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+m.database); err != nil {
			return fmt.Errorf("create database %s: %w", m.database, err)
		}
	}
	for _, t := range BillingTables {
		if _, err := m.ch.ExecContext(ctx, t.CreateSQL(db.ClickHouse, m.database)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (m *ClickHouseMirror) UpsertCustomers(ctx context.Context, rows []model.Customer) error {
	return m.append(ctx, CustomersTable, customerRows(rows))
}

func (m *ClickHouseMirror) UpsertSubscriptions(ctx context.Context, rows []model.Subscription) error {
	return m.append(ctx, SubscriptionsTable, subscriptionRows(rows))
}

func (m *ClickHouseMirror) UpsertCharges(ctx context.Context, rows []model.Charge) error {
	return m.append(ctx, ChargesTable, chargeRows(rows))
}

func (m *ClickHouseMirror) UpsertInvoices(ctx context.Context, rows []model.Invoice) error {
	return m.append(ctx, InvoicesTable, invoiceRows(rows))
}

func (m *ClickHouseMirror) insertSQL(t Table) string {
	return fmt.Sprintf("INSERT INTO %s (%s, synced_at)",
		db.ClickHouse.Qualify(m.database, t.Name), strings.Join(t.ColumnNames(), ", "))
}

// append sends rows as one ClickHouse batch: the driver buffers prepared
// executions and ships them on commit.
func (m *ClickHouseMirror) append(ctx context.Context, t Table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	syncedAt := m.now().UTC()

	return withTx(ctx, m.ch, nil, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, m.insertSQL(t))
		if err != nil {
			return fmt.Errorf("prepare %s batch: %w", t.Name, err)
		}
		defer stmt.Close()

		for _, rw := range rows {
			args := make([]any, 0, len(rw)+1)
			args = append(args, rw...)
			args = append(args, syncedAt)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("append %s %v: %w", t.Name, rw[0], err)
			}
		}
		return nil
	})
}
