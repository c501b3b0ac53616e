package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/metrics"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
	"github.com/jmehdipour/billing-sandbox/internal/util"
)

// Source yields complete collections, e.g. *client.Client.
type Source interface {
	Customers(ctx context.Context) ([]model.Customer, error)
	Subscriptions(ctx context.Context) ([]model.Subscription, error)
	Charges(ctx context.Context) ([]model.Charge, error)
	Invoices(ctx context.Context) ([]model.Invoice, error)
}

type Summary struct {
	RunID         string
	Customers     int
	Subscriptions int
	Charges       int
	Invoices      int
	ActiveMRR     decimal.Decimal // monthly plan amount of active subscriptions, in major units
	Duration      time.Duration
}

// Loader copies every collection from a Source into one or more
// BillingWriters. The first writer is the primary store; any others
// (the ClickHouse mirror) receive the same rows after it.
type Loader struct {
	src     Source
	writers []repository.BillingWriter
	log     *zap.Logger
}

func New(src Source, log *zap.Logger, primary repository.BillingWriter, mirrors ...repository.BillingWriter) *Loader {
	return &Loader{
		src:     src,
		writers: append([]repository.BillingWriter{primary}, mirrors...),
		log:     log,
	}
}

// Run ensures the schema and then syncs customers, subscriptions, charges
// and invoices in that order. Each step is fully fetched and committed
// before the next one starts; the first error aborts the run, leaving
// earlier steps committed.
func (l *Loader) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	sum := Summary{RunID: util.NewAt(started)}
	log := l.log.With(zap.String("run_id", sum.RunID))

	for _, w := range l.writers {
		if err := w.EnsureSchema(ctx); err != nil {
			return sum, fmt.Errorf("ensure schema on %s: %w", w.Target(), err)
		}
	}
	log.Info("schema ready")

	customers, err := l.src.Customers(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch customers: %w", err)
	}
	if err := l.write(ctx, log, "customers", len(customers), func(w repository.BillingWriter) error {
		return w.UpsertCustomers(ctx, customers)
	}); err != nil {
		return sum, err
	}
	sum.Customers = len(customers)

	subs, err := l.src.Subscriptions(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch subscriptions: %w", err)
	}
	if err := l.write(ctx, log, "subscriptions", len(subs), func(w repository.BillingWriter) error {
		return w.UpsertSubscriptions(ctx, subs)
	}); err != nil {
		return sum, err
	}
	sum.Subscriptions = len(subs)
	sum.ActiveMRR = ActiveMRR(subs)

	charges, err := l.src.Charges(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch charges: %w", err)
	}
	if err := l.write(ctx, log, "charges", len(charges), func(w repository.BillingWriter) error {
		return w.UpsertCharges(ctx, charges)
	}); err != nil {
		return sum, err
	}
	sum.Charges = len(charges)

	invoices, err := l.src.Invoices(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch invoices: %w", err)
	}
	if err := l.write(ctx, log, "invoices", len(invoices), func(w repository.BillingWriter) error {
		return w.UpsertInvoices(ctx, invoices)
	}); err != nil {
		return sum, err
	}
	sum.Invoices = len(invoices)

	sum.Duration = time.Since(started)
	log.Info("sync complete",
		zap.Int("customers", sum.Customers),
		zap.Int("subscriptions", sum.Subscriptions),
		zap.Int("charges", sum.Charges),
		zap.Int("invoices", sum.Invoices),
		zap.String("active_mrr", sum.ActiveMRR.StringFixed(2)),
		zap.Duration("took", sum.Duration))
	return sum, nil
}

func (l *Loader) write(ctx context.Context, log *zap.Logger, entity string, n int, fn func(repository.BillingWriter) error) error {
	for _, w := range l.writers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(w); err != nil {
			return fmt.Errorf("upsert %s into %s: %w", entity, w.Target(), err)
		}
		metrics.RowsUpsertedTotal.WithLabelValues(entity, w.Target()).Add(float64(n))
	}
	log.Info("synced", zap.String("entity", entity), zap.Int("rows", n))
	return nil
}

// ActiveMRR sums the plan amount of active subscriptions, converted from
// minor units.
func ActiveMRR(subs []model.Subscription) decimal.Decimal {
	var cents int64
	for _, s := range subs {
		if s.Status == model.SubscriptionActive {
			cents += s.Plan.Amount
		}
	}
	return decimal.New(cents, -2)
}
