package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/kafka"
	"github.com/jmehdipour/billing-sandbox/internal/metrics"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmehdipour/billing-sandbox/internal/repository"
)

// Fetcher is the consumer side used by LoaderKafka; *kafka.Consumer
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// LoaderKafka:
// - fetches record envelopes from Kafka,
// - buffers them per entity type,
// - flushes by size or time through the billing writers,
// - commits offsets only after a successful flush.
type LoaderKafka struct {
	Consumer  Fetcher
	Writers   []repository.BillingWriter // primary store first
	BatchSize int                        // max buffered envelopes per flush
	BatchWait time.Duration              // max time to wait before flush
	Log       *zap.Logger
}

func NewLoaderKafka(consumer Fetcher, log *zap.Logger, writers ...repository.BillingWriter) *LoaderKafka {
	return &LoaderKafka{
		Consumer:  consumer,
		Writers:   writers,
		BatchSize: 500,
		BatchWait: time.Second,
		Log:       log,
	}
}

// Run blocks until ctx is cancelled or a flush fails. Pending envelopes are
// flushed on shutdown; after a failed flush nothing is committed so the
// batch is redelivered on restart.
func (w *LoaderKafka) Run(ctx context.Context) error {
	if len(w.Writers) == 0 {
		return fmt.Errorf("loader-kafka: no writers")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}
	for _, wr := range w.Writers {
		if err := wr.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema on %s: %w", wr.Target(), err)
		}
	}

	fetchCtx, stop := context.WithCancel(ctx)
	defer stop()

	msgCh := make(chan kafka.Message, w.BatchSize)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(fetchCtx)
			if err != nil {
				if fetchCtx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-fetchCtx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-fetchCtx.Done():
				return
			}
		}
	}()

	in := (<-chan kafka.Message)(msgCh)
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		buf     batch
		pending []kafka.Message
	)
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if err := w.flush(ctx, &buf); err != nil {
			return err
		}
		if err := w.Consumer.Commit(ctx, pending...); err != nil {
			return fmt.Errorf("commit offsets: %w", err)
		}
		w.Log.Info("flushed", zap.Int("envelopes", len(pending)), zap.Int("records", buf.len()))
		buf, pending = batch{}, pending[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			// drain with a fresh deadline so shutdown still persists the tail
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return flush(shutdownCtx)

		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			w.buffer(&buf, m)
			pending = append(pending, m)
			if len(pending) >= w.BatchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}

		case <-tick.C:
			if err := flush(ctx); err != nil {
				return err
			}
		}
	}
}

// buffer decodes m into buf. Undecodable envelopes are logged and counted
// but still committed with the batch they arrived in.
func (w *LoaderKafka) buffer(buf *batch, m kafka.Message) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		metrics.EnvelopesTotal.WithLabelValues("failed", "unknown").Inc()
		w.Log.Warn("bad envelope json", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if err := buf.add(env); err != nil {
		metrics.EnvelopesTotal.WithLabelValues("failed", env.Type).Inc()
		w.Log.Warn("skipping envelope", zap.String("id", env.ID), zap.String("type", env.Type), zap.Error(err))
		return
	}
	metrics.EnvelopesTotal.WithLabelValues("consumed", env.Type).Inc()
}

// flush writes each entity type in its own transaction per writer, parents
// first.
func (w *LoaderKafka) flush(ctx context.Context, buf *batch) error {
	steps := []struct {
		typ    string
		entity string
		n      int
		write  func(repository.BillingWriter) error
	}{
		{model.ObjectCustomer, "customers", len(buf.customers.rows), func(wr repository.BillingWriter) error {
			return wr.UpsertCustomers(ctx, buf.customers.rows)
		}},
		{model.ObjectSubscription, "subscriptions", len(buf.subscriptions.rows), func(wr repository.BillingWriter) error {
			return wr.UpsertSubscriptions(ctx, buf.subscriptions.rows)
		}},
		{model.ObjectCharge, "charges", len(buf.charges.rows), func(wr repository.BillingWriter) error {
			return wr.UpsertCharges(ctx, buf.charges.rows)
		}},
		{model.ObjectInvoice, "invoices", len(buf.invoices.rows), func(wr repository.BillingWriter) error {
			return wr.UpsertInvoices(ctx, buf.invoices.rows)
		}},
	}

	for _, st := range steps {
		if st.n == 0 {
			continue
		}
		for _, wr := range w.Writers {
			if err := st.write(wr); err != nil {
				return fmt.Errorf("flush %s into %s: %w", st.entity, wr.Target(), err)
			}
			metrics.RowsUpsertedTotal.WithLabelValues(st.entity, wr.Target()).Add(float64(st.n))
		}
		metrics.EnvelopesTotal.WithLabelValues("flushed", st.typ).Add(float64(st.n))
	}
	return nil
}
