package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmehdipour/billing-sandbox/internal/generator"
	"github.com/jmehdipour/billing-sandbox/internal/kafka"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
)

// fakeTopic serves queued messages and records commits.
type fakeTopic struct {
	ch chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeTopic(msgs []kafka.Message) *fakeTopic {
	f := &fakeTopic{ch: make(chan kafka.Message, len(msgs))}
	for i, m := range msgs {
		m.Offset = int64(i)
		f.ch <- m
	}
	return f
}

func (f *fakeTopic) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeTopic) Commit(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeTopic) Committed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func (f *fakeTopic) Write(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.ch <- m
	}
	return nil
}

func testDataset(t *testing.T) *generator.Dataset {
	t.Helper()
	opts := generator.DefaultOptions()
	opts.Customers = 40
	opts.Now = func() time.Time { return time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC) }
	ds, err := generator.Build(opts)
	require.NoError(t, err)
	return ds
}

func sqliteStore(t *testing.T) (*repository.BillingStore, *sqlx.DB) {
	t.Helper()
	conn, err := db.Open(context.Background(), db.SQLOpts{Dialect: db.SQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return repository.NewBillingStore(conn, db.SQLite, "stripe", 0), conn
}

func count(t *testing.T, conn *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestMessages_KeyedEnvelopesInDependencyOrder(t *testing.T) {
	ds := testDataset(t)
	msgs, err := Messages(ds)
	require.NoError(t, err)
	require.Len(t, msgs, ds.Totals().Customers+ds.Totals().Subscriptions+ds.Totals().Charges+ds.Totals().Invoices)

	first := msgs[0]
	assert.Equal(t, ds.Customers[0].ID, string(first.Key))
	assert.Equal(t, model.ObjectCustomer, envelopeType(first))

	var env model.Envelope
	require.NoError(t, json.Unmarshal(first.Value, &env))
	assert.Len(t, env.ID, 26)
	var c model.Customer
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, ds.Customers[0], c)

	assert.Equal(t, model.ObjectInvoice, envelopeType(msgs[len(msgs)-1]))
}

func TestPublish_Chunks(t *testing.T) {
	ds := testDataset(t)
	msgs, err := Messages(ds)
	require.NoError(t, err)

	topic := &fakeTopic{ch: make(chan kafka.Message, len(msgs))}
	sent, err := Publish(context.Background(), topic, msgs, 7)
	require.NoError(t, err)
	assert.Equal(t, len(msgs), sent)
	assert.Len(t, topic.ch, len(msgs))
}

func TestLoaderKafka_ReplaysDataset(t *testing.T) {
	ds := testDataset(t)
	msgs, err := Messages(ds)
	require.NoError(t, err)
	// a duplicate and a poison message ride along
	msgs = append(msgs, msgs[0], kafka.Message{Value: []byte("not json")})

	topic := newFakeTopic(msgs)
	store, conn := sqliteStore(t)
	w := NewLoaderKafka(topic, zap.NewNop(), store)
	w.BatchSize = 25
	w.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return topic.Committed() == len(msgs) }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, len(ds.Customers), count(t, conn, "stripe__customers"))
	assert.Equal(t, len(ds.Subscriptions), count(t, conn, "stripe__subscriptions"))
	assert.Equal(t, len(ds.Charges), count(t, conn, "stripe__charges"))
	assert.Equal(t, len(ds.Invoices), count(t, conn, "stripe__invoices"))
}

type failingWriter struct{}

var _ repository.BillingWriter = failingWriter{}

func (failingWriter) Target() string                     { return "broken" }
func (failingWriter) EnsureSchema(context.Context) error { return nil }
func (failingWriter) UpsertCustomers(context.Context, []model.Customer) error {
	return errors.New("disk full")
}
func (failingWriter) UpsertSubscriptions(context.Context, []model.Subscription) error { return nil }
func (failingWriter) UpsertCharges(context.Context, []model.Charge) error             { return nil }
func (failingWriter) UpsertInvoices(context.Context, []model.Invoice) error           { return nil }

func TestLoaderKafka_FailedFlushCommitsNothing(t *testing.T) {
	ds := testDataset(t)
	msgs, err := Messages(ds)
	require.NoError(t, err)

	topic := newFakeTopic(msgs[:5])
	w := NewLoaderKafka(topic, zap.NewNop(), failingWriter{})
	w.BatchSize = 5

	err = w.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, topic.Committed())
}

func TestBatch_LatestVersionWins(t *testing.T) {
	var b batch
	enc := func(c model.Customer) model.Envelope {
		data, _ := json.Marshal(c)
		return model.Envelope{Type: model.ObjectCustomer, Data: data}
	}
	require.NoError(t, b.add(enc(model.Customer{ID: "cus_1", Email: "old@example.com"})))
	require.NoError(t, b.add(enc(model.Customer{ID: "cus_2"})))
	require.NoError(t, b.add(enc(model.Customer{ID: "cus_1", Email: "new@example.com"})))

	require.Len(t, b.customers.rows, 2)
	assert.Equal(t, "new@example.com", b.customers.rows[0].Email)

	assert.Error(t, b.add(model.Envelope{Type: "refund", Data: []byte(`{}`)}))
	assert.Error(t, b.add(model.Envelope{Type: model.ObjectCharge, Data: []byte(`{"amount":1}`)}))
}
