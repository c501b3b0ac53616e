package repository

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/model"
)

func newSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Open(context.Background(), db.SQLOpts{Dialect: db.SQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newStore(t *testing.T, chunk int) (*BillingStore, *sqlx.DB) {
	t.Helper()
	conn := newSQLite(t)
	store := NewBillingStore(conn, db.SQLite, "stripe", chunk)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store, conn
}

func customer(id, email string, created int64) model.Customer {
	return model.Customer{
		ID: id, Object: model.ObjectCustomer, Email: email, Name: "Customer " + id,
		Created: created, Currency: "usd",
		Metadata: model.CustomerMetadata{Company: "Acme Corp", Industry: "SaaS"},
	}
}

func TestUpserter_Statement(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		q := Upserter{Dialect: db.Postgres, Schema: "stripe"}.statement(CustomersTable, 2)
		assert.Contains(t, q, "INSERT INTO stripe.customers (id, email, name, created, currency, company, industry) VALUES ")
		assert.Contains(t, q, "(?, ?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?, ?)")
		assert.Contains(t, q, "ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, synced_at = CURRENT_TIMESTAMP")
	})

	t.Run("mysql", func(t *testing.T) {
		q := Upserter{Dialect: db.MySQL, Schema: "stripe"}.statement(InvoicesTable, 1)
		assert.Contains(t, q, "INSERT INTO stripe__invoices ")
		assert.Contains(t, q, "ON DUPLICATE KEY UPDATE status = VALUES(status), amount_paid = VALUES(amount_paid), synced_at = CURRENT_TIMESTAMP")
	})
}

func TestTable_CreateSQL(t *testing.T) {
	pg := SubscriptionsTable.CreateSQL(db.Postgres, "stripe")
	assert.Contains(t, pg, "CREATE TABLE IF NOT EXISTS stripe.subscriptions")
	assert.Contains(t, pg, "id VARCHAR(255) PRIMARY KEY")
	assert.Contains(t, pg, "canceled_at BIGINT")
	assert.Contains(t, pg, "synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP")

	ch := SubscriptionsTable.CreateSQL(db.ClickHouse, "billing")
	assert.Contains(t, ch, "billing.subscriptions")
	assert.Contains(t, ch, "canceled_at Nullable(Int64)")
	assert.Contains(t, ch, "ENGINE = ReplacingMergeTree(synced_at) ORDER BY id")
	assert.NotContains(t, ch, "PRIMARY KEY")
}

func TestBillingStore_UpsertKeepsImmutableColumns(t *testing.T) {
	ctx := context.Background()
	store, conn := newStore(t, 0)

	require.NoError(t, store.UpsertCustomers(ctx, []model.Customer{customer("cus_1", "old@example.com", 100)}))
	require.NoError(t, store.UpsertCustomers(ctx, []model.Customer{customer("cus_1", "new@example.com", 999)}))

	var got struct {
		Email   string `db:"email"`
		Created int64  `db:"created"`
	}
	require.NoError(t, conn.Get(&got, `SELECT email, created FROM stripe__customers WHERE id = 'cus_1'`))
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, int64(100), got.Created)

	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM stripe__customers`))
	assert.Equal(t, 1, n)
}

func TestBillingStore_SubscriptionCancellationUpdates(t *testing.T) {
	ctx := context.Background()
	store, conn := newStore(t, 0)

	sub := model.Subscription{
		ID: "sub_1", CustomerID: "cus_1", Status: model.SubscriptionActive,
		Plan:    model.Plan{ID: "starter", Amount: 2900, Currency: "usd", Interval: "month"},
		Created: 100,
	}
	require.NoError(t, store.UpsertSubscriptions(ctx, []model.Subscription{sub}))

	canceledAt := int64(5000)
	sub.Status = model.SubscriptionCanceled
	sub.CanceledAt = &canceledAt
	sub.Plan.Amount = 1
	require.NoError(t, store.UpsertSubscriptions(ctx, []model.Subscription{sub}))

	var got struct {
		Status     string `db:"status"`
		CanceledAt *int64 `db:"canceled_at"`
		Amount     int64  `db:"plan_amount"`
	}
	require.NoError(t, conn.Get(&got, `SELECT status, canceled_at, plan_amount FROM stripe__subscriptions WHERE id = 'sub_1'`))
	assert.Equal(t, "canceled", got.Status)
	require.NotNil(t, got.CanceledAt)
	assert.Equal(t, canceledAt, *got.CanceledAt)
	assert.Equal(t, int64(2900), got.Amount)
}

func TestBillingStore_ChunkedWritesAllRows(t *testing.T) {
	ctx := context.Background()
	store, conn := newStore(t, 3)

	charges := make([]model.Charge, 10)
	for i := range charges {
		charges[i] = model.Charge{
			ID: "ch_" + string(rune('a'+i)), CustomerID: "cus_1", Amount: 2900, Currency: "usd",
			Status: model.ChargeSucceeded, Paid: true, Created: int64(i),
			Metadata: model.ChargeMetadata{SubscriptionID: "sub_1", Plan: "starter"},
		}
	}
	require.NoError(t, store.UpsertCharges(ctx, charges))

	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM stripe__charges`))
	assert.Equal(t, 10, n)
}

func TestBillingStore_FailedBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	store, conn := newStore(t, 1)

	_, err := conn.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON stripe__customers
		WHEN NEW.id = 'cus_bad' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = store.UpsertCustomers(ctx, []model.Customer{
		customer("cus_1", "a@example.com", 1),
		customer("cus_2", "b@example.com", 2),
		customer("cus_bad", "c@example.com", 3),
	})
	require.Error(t, err)

	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM stripe__customers`))
	assert.Zero(t, n)
}

func TestBillingStore_EmptyInputIsNoop(t *testing.T) {
	store, _ := newStore(t, 0)
	assert.NoError(t, store.UpsertInvoices(context.Background(), nil))
}

func TestUpserter_RejectsShortRow(t *testing.T) {
	ctx := context.Background()
	conn := newSQLite(t)
	_, err := conn.Exec(CustomersTable.CreateSQL(db.SQLite, ""))
	require.NoError(t, err)

	tx, err := conn.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	err = Upserter{Dialect: db.SQLite}.Upsert(ctx, tx, CustomersTable, [][]any{{"cus_1"}})
	assert.ErrorContains(t, err, "row has 1 values, want 7")
}

func TestLatestByKey_LastVersionWinsInFirstPosition(t *testing.T) {
	rows := [][]any{
		{"cus_1", "a@example.com", "A", int64(1), "usd", "Acme Corp", "SaaS"},
		{"cus_2", "b@example.com", "B", int64(2), "usd", "Tech Inc", "SaaS"},
		{"cus_1", "a2@example.com", "A", int64(1), "usd", "Acme Corp", "SaaS"},
	}

	got := latestByKey(CustomersTable, rows)

	require.Len(t, got, 2)
	assert.Equal(t, "cus_1", got[0][0])
	assert.Equal(t, "a2@example.com", got[0][1])
	assert.Equal(t, "cus_2", got[1][0])
}

func TestBillingStore_DuplicateIDsInOneCall(t *testing.T) {
	ctx := context.Background()
	store, conn := newStore(t, 0)

	require.NoError(t, store.UpsertCustomers(ctx, []model.Customer{
		customer("cus_1", "first@example.com", 100),
		customer("cus_1", "second@example.com", 100),
	}))

	var email string
	require.NoError(t, conn.Get(&email, `SELECT email FROM stripe__customers WHERE id = 'cus_1'`))
	assert.Equal(t, "second@example.com", email)
}
