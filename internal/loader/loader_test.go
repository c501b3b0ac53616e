package loader

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/client"
	"github.com/jmehdipour/billing-sandbox/internal/config"
	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/generator"
	apihttp "github.com/jmehdipour/billing-sandbox/internal/http"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmehdipour/billing-sandbox/internal/query"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
)

func mockAPI(t *testing.T) (*httptest.Server, *generator.Dataset) {
	t.Helper()
	opts := generator.DefaultOptions()
	opts.Customers = 60
	opts.Now = func() time.Time { return time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC) }
	ds, err := generator.Build(opts)
	require.NoError(t, err)

	cfg := config.Config{App: config.AppConfig{Version: "test"}}
	srv := apihttp.NewServer(cfg, query.New(ds, query.Options{}), nil, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, ds
}

func sqliteStore(t *testing.T) (*repository.BillingStore, *sqlx.DB) {
	t.Helper()
	conn, err := db.Open(context.Background(), db.SQLOpts{Dialect: db.SQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return repository.NewBillingStore(conn, db.SQLite, "stripe", 50), conn
}

func count(t *testing.T, conn *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestLoader_SyncsEverything(t *testing.T) {
	ts, ds := mockAPI(t)
	store, conn := sqliteStore(t)

	l := New(client.New(client.Config{BaseURL: ts.URL, PageSize: 7}), zap.NewNop(), store)
	sum, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, sum.RunID, 26)
	assert.Equal(t, len(ds.Customers), sum.Customers)
	assert.Equal(t, len(ds.Subscriptions), sum.Subscriptions)
	assert.Equal(t, len(ds.Charges), sum.Charges)
	assert.Equal(t, len(ds.Invoices), sum.Invoices)
	assert.True(t, ActiveMRR(ds.Subscriptions).Equal(sum.ActiveMRR))

	assert.Equal(t, len(ds.Customers), count(t, conn, "stripe__customers"))
	assert.Equal(t, len(ds.Subscriptions), count(t, conn, "stripe__subscriptions"))
	assert.Equal(t, len(ds.Charges), count(t, conn, "stripe__charges"))
	assert.Equal(t, len(ds.Invoices), count(t, conn, "stripe__invoices"))

	var company string
	require.NoError(t, conn.Get(&company, `SELECT company FROM stripe__customers WHERE id = ?`, ds.Customers[0].ID))
	assert.Equal(t, ds.Customers[0].Metadata.Company, company)
}

func TestLoader_RerunIsIdempotent(t *testing.T) {
	ts, ds := mockAPI(t)
	store, conn := sqliteStore(t)
	l := New(client.New(client.Config{BaseURL: ts.URL}), zap.NewNop(), store)

	_, err := l.Run(context.Background())
	require.NoError(t, err)
	_, err = l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(ds.Customers), count(t, conn, "stripe__customers"))
	assert.Equal(t, len(ds.Charges), count(t, conn, "stripe__charges"))
}

// stubSource fails on one collection.
type stubSource struct {
	customers []model.Customer
	failOn    string
}

var errFetch = errors.New("fetch failed")

func (s stubSource) Customers(context.Context) ([]model.Customer, error) {
	if s.failOn == "customers" {
		return nil, errFetch
	}
	return s.customers, nil
}

func (s stubSource) Subscriptions(context.Context) ([]model.Subscription, error) {
	if s.failOn == "subscriptions" {
		return nil, errFetch
	}
	return nil, nil
}

func (s stubSource) Charges(context.Context) ([]model.Charge, error)   { return nil, nil }
func (s stubSource) Invoices(context.Context) ([]model.Invoice, error) { return nil, nil }

func TestLoader_StopsAtFirstFailureKeepingEarlierSteps(t *testing.T) {
	store, conn := sqliteStore(t)
	src := stubSource{
		customers: []model.Customer{{ID: "cus_1", Email: "a@example.com"}},
		failOn:    "subscriptions",
	}

	sum, err := New(src, zap.NewNop(), store).Run(context.Background())
	require.ErrorIs(t, err, errFetch)
	assert.ErrorContains(t, err, "fetch subscriptions")
	assert.Equal(t, 1, sum.Customers)
	assert.Equal(t, 1, count(t, conn, "stripe__customers"))
}

// recordingWriter stands in for a mirror target.
type recordingWriter struct {
	customers int
}

var _ repository.BillingWriter = (*recordingWriter)(nil)

func (w *recordingWriter) Target() string                     { return "mirror" }
func (w *recordingWriter) EnsureSchema(context.Context) error { return nil }
func (w *recordingWriter) UpsertCustomers(_ context.Context, rows []model.Customer) error {
	w.customers += len(rows)
	return nil
}
func (w *recordingWriter) UpsertSubscriptions(context.Context, []model.Subscription) error {
	return nil
}
func (w *recordingWriter) UpsertCharges(context.Context, []model.Charge) error   { return nil }
func (w *recordingWriter) UpsertInvoices(context.Context, []model.Invoice) error { return nil }

func TestLoader_WritesMirrors(t *testing.T) {
	store, _ := sqliteStore(t)
	mirror := &recordingWriter{}
	src := stubSource{customers: []model.Customer{{ID: "cus_1"}, {ID: "cus_2"}}}

	_, err := New(src, zap.NewNop(), store, mirror).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mirror.customers)
}

func TestActiveMRR(t *testing.T) {
	subs := []model.Subscription{
		{Status: model.SubscriptionActive, Plan: model.Plan{Amount: 2900}},
		{Status: model.SubscriptionActive, Plan: model.Plan{Amount: 9900}},
		{Status: model.SubscriptionCanceled, Plan: model.Plan{Amount: 29900}},
	}
	assert.True(t, decimal.RequireFromString("128.00").Equal(ActiveMRR(subs)))
}
