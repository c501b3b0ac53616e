package generator

import "github.com/jmehdipour/billing-sandbox/internal/model"

// Dataset holds the four collections built at process start. It is never
// mutated afterwards, so it can be shared by concurrent readers.
type Dataset struct {
	Customers     []model.Customer
	Subscriptions []model.Subscription
	Charges       []model.Charge
	Invoices      []model.Invoice
}

// Build generates the collections in dependency order.
func Build(opts Options) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	g := New(opts)
	customers := g.Customers(opts.Customers)
	subs := g.Subscriptions(customers)
	return &Dataset{
		Customers:     customers,
		Subscriptions: subs,
		Charges:       g.Charges(subs),
		Invoices:      g.Invoices(subs),
	}, nil
}

func (d *Dataset) Totals() model.RecordTotals {
	return model.RecordTotals{
		Customers:     len(d.Customers),
		Subscriptions: len(d.Subscriptions),
		Charges:       len(d.Charges),
		Invoices:      len(d.Invoices),
	}
}
