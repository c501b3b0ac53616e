package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	CustomersTable = Table{
		Name: "customers",
		Key:  "id",
		Columns: []Column{
			{Name: "id", Kind: String},
			{Name: "email", Kind: String},
			{Name: "name", Kind: String},
			{Name: "created", Kind: BigInt},
			{Name: "currency", Kind: String},
			{Name: "company", Kind: String},
			{Name: "industry", Kind: String},
		},
		Mutable: []string{"email", "name"},
	}

	SubscriptionsTable = Table{
		Name: "subscriptions",
		Key:  "id",
		Columns: []Column{
			{Name: "id", Kind: String},
			{Name: "customer_id", Kind: String},
			{Name: "status", Kind: String},
			{Name: "plan_id", Kind: String},
			{Name: "plan_amount", Kind: Int},
			{Name: "plan_currency", Kind: String},
			{Name: "plan_interval", Kind: String},
			{Name: "created", Kind: BigInt},
			{Name: "canceled_at", Kind: BigInt, Nullable: true},
		},
		Mutable: []string{"status", "canceled_at"},
	}

	ChargesTable = Table{
		Name: "charges",
		Key:  "id",
		Columns: []Column{
			{Name: "id", Kind: String},
			{Name: "customer_id", Kind: String},
			{Name: "amount", Kind: Int},
			{Name: "currency", Kind: String},
			{Name: "status", Kind: String},
			{Name: "paid", Kind: Bool},
			{Name: "created", Kind: BigInt},
			{Name: "subscription_id", Kind: String},
		},
		Mutable: []string{"status"},
	}

	InvoicesTable = Table{
		Name: "invoices",
		Key:  "id",
		Columns: []Column{
			{Name: "id", Kind: String},
			{Name: "customer_id", Kind: String},
			{Name: "subscription_id", Kind: String},
			{Name: "amount_due", Kind: Int},
			{Name: "amount_paid", Kind: Int},
			{Name: "status", Kind: String},
			{Name: "created", Kind: BigInt},
			{Name: "period_start", Kind: BigInt},
			{Name: "period_end", Kind: BigInt},
		},
		Mutable: []string{"status", "amount_paid"},
	}

	BillingTables = []Table{CustomersTable, SubscriptionsTable, ChargesTable, InvoicesTable}
)

func customerRows(cs []model.Customer) [][]any {
	rows := make([][]any, len(cs))
	for i, c := range cs {
		rows[i] = []any{c.ID, c.Email, c.Name, c.Created, c.Currency, c.Metadata.Company, c.Metadata.Industry}
	}
	return rows
}

func subscriptionRows(ss []model.Subscription) [][]any {
	rows := make([][]any, len(ss))
	for i, s := range ss {
		rows[i] = []any{
			s.ID, s.CustomerID, string(s.Status),
			s.Plan.ID, s.Plan.Amount, s.Plan.Currency, s.Plan.Interval,
			s.Created, s.CanceledAt,
		}
	}
	return rows
}

func chargeRows(cs []model.Charge) [][]any {
	rows := make([][]any, len(cs))
	for i, c := range cs {
		rows[i] = []any{c.ID, c.CustomerID, c.Amount, c.Currency, string(c.Status), c.Paid, c.Created, c.Metadata.SubscriptionID}
	}
	return rows
}

func invoiceRows(is []model.Invoice) [][]any {
	rows := make([][]any, len(is))
	for i, in := range is {
		rows[i] = []any{
			in.ID, in.CustomerID, in.SubscriptionID, in.AmountDue, in.AmountPaid,
			in.Status, in.Created, in.PeriodStart, in.PeriodEnd,
		}
	}
	return rows
}

// BillingWriter persists the four billing collections. Each Upsert call is
// all-or-nothing.
type BillingWriter interface {
	Target() string
	EnsureSchema(ctx context.Context) error
	UpsertCustomers(ctx context.Context, rows []model.Customer) error
	UpsertSubscriptions(ctx context.Context, rows []model.Subscription) error
	UpsertCharges(ctx context.Context, rows []model.Charge) error
	UpsertInvoices(ctx context.Context, rows []model.Invoice) error
}

// BillingStore is the relational BillingWriter (postgres, mysql or sqlite).
type BillingStore struct {
	db *sqlx.DB
	up Upserter
}

var _ BillingWriter = (*BillingStore)(nil)

func NewBillingStore(conn *sqlx.DB, dialect db.Dialect, schema string, chunkSize int) *BillingStore {
	return &BillingStore{
		db: conn,
		up: Upserter{Dialect: dialect, Schema: schema, ChunkSize: chunkSize},
	}
}

func (s *BillingStore) Target() string { return string(s.up.Dialect) }

// EnsureSchema creates the schema (postgres only) and the four tables when missing.
func (s *BillingStore) EnsureSchema(ctx context.Context) error {
	if s.up.Dialect == db.Postgres && s.up.Schema != "" {
		if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+s.up.Schema); err != nil {
			return fmt.Errorf("create schema %s: %w", s.up.Schema, err)
		}
	}
	for _, t := range BillingTables {
		if _, err := s.db.ExecContext(ctx, t.CreateSQL(s.up.Dialect, s.up.Schema)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *BillingStore) UpsertCustomers(ctx context.Context, rows []model.Customer) error {
	return s.upsert(ctx, CustomersTable, customerRows(rows))
}

func (s *BillingStore) UpsertSubscriptions(ctx context.Context, rows []model.Subscription) error {
	return s.upsert(ctx, SubscriptionsTable, subscriptionRows(rows))
}

func (s *BillingStore) UpsertCharges(ctx context.Context, rows []model.Charge) error {
	return s.upsert(ctx, ChargesTable, chargeRows(rows))
}

func (s *BillingStore) UpsertInvoices(ctx context.Context, rows []model.Invoice) error {
	return s.upsert(ctx, InvoicesTable, invoiceRows(rows))
}

func (s *BillingStore) upsert(ctx context.Context, t Table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return withTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		return s.up.Upsert(ctx, tx, t, rows)
	})
}
