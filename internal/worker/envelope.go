package worker

import (
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/billing-sandbox/internal/generator"
	"github.com/jmehdipour/billing-sandbox/internal/kafka"
	"github.com/jmehdipour/billing-sandbox/internal/model"
	"github.com/jmehdipour/billing-sandbox/internal/util"
)

const typeHeader = "type"

// Messages turns a dataset into one keyed envelope per record, parents
// before children.
func Messages(ds *generator.Dataset) ([]kafka.Message, error) {
	out := make([]kafka.Message, 0, len(ds.Customers)+len(ds.Subscriptions)+len(ds.Charges)+len(ds.Invoices))
	add := func(typ, id string, record any) error {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", typ, id, err)
		}
		value, err := json.Marshal(model.Envelope{ID: util.New(), Type: typ, Data: data})
		if err != nil {
			return err
		}
		out = append(out, kafka.Message{
			Key:     []byte(id),
			Value:   value,
			Headers: []kafka.Header{{Key: typeHeader, Value: []byte(typ)}},
		})
		return nil
	}

	for _, c := range ds.Customers {
		if err := add(model.ObjectCustomer, c.ID, c); err != nil {
			return nil, err
		}
	}
	for _, s := range ds.Subscriptions {
		if err := add(model.ObjectSubscription, s.ID, s); err != nil {
			return nil, err
		}
	}
	for _, c := range ds.Charges {
		if err := add(model.ObjectCharge, c.ID, c); err != nil {
			return nil, err
		}
	}
	for _, in := range ds.Invoices {
		if err := add(model.ObjectInvoice, in.ID, in); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// batch accumulates decoded records per type. A record seen twice keeps
// its latest version.
type batch struct {
	customers     keyed[model.Customer]
	subscriptions keyed[model.Subscription]
	charges       keyed[model.Charge]
	invoices      keyed[model.Invoice]
}

func (b *batch) len() int {
	return len(b.customers.rows) + len(b.subscriptions.rows) + len(b.charges.rows) + len(b.invoices.rows)
}

// add decodes env into the matching collection.
func (b *batch) add(env model.Envelope) error {
	switch env.Type {
	case model.ObjectCustomer:
		return b.customers.decode(env.Data, func(v model.Customer) string { return v.ID })
	case model.ObjectSubscription:
		return b.subscriptions.decode(env.Data, func(v model.Subscription) string { return v.ID })
	case model.ObjectCharge:
		return b.charges.decode(env.Data, func(v model.Charge) string { return v.ID })
	case model.ObjectInvoice:
		return b.invoices.decode(env.Data, func(v model.Invoice) string { return v.ID })
	default:
		return fmt.Errorf("unknown envelope type %q", env.Type)
	}
}

type keyed[T any] struct {
	rows []T
	pos  map[string]int
}

func (k *keyed[T]) decode(data json.RawMessage, id func(T) string) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	key := id(v)
	if key == "" {
		return fmt.Errorf("record without id")
	}
	if k.pos == nil {
		k.pos = make(map[string]int)
	}
	if i, ok := k.pos[key]; ok {
		k.rows[i] = v
		return nil
	}
	k.pos[key] = len(k.rows)
	k.rows = append(k.rows, v)
	return nil
}
