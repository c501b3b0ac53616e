// Package generator builds the deterministic synthetic billing dataset served
// by the mock API: customers, subscriptions, charges and invoices.
package generator

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/jmehdipour/billing-sandbox/internal/model"
)

const (
	day         = 24 * time.Hour
	billingStep = 30 * day
	idHashLen   = 24
	currency    = "usd"
)

// Plans is the fixed plan catalog subscriptions draw from.
var Plans = []model.Plan{
	{ID: "starter", Object: model.ObjectPlan, Amount: 2900, Currency: currency, Interval: "month", Product: "Starter"},
	{ID: "professional", Object: model.ObjectPlan, Amount: 9900, Currency: currency, Interval: "month", Product: "Professional"},
	{ID: "enterprise", Object: model.ObjectPlan, Amount: 29900, Currency: currency, Interval: "month", Product: "Enterprise"},
}

var (
	companies  = []string{"Acme Corp", "Tech Inc", "StartupXYZ", "Innovate LLC"}
	industries = []string{"SaaS", "E-commerce", "Consulting", "Agency"}

	// nine active to one canceled
	statusWeights = []model.SubscriptionStatus{
		model.SubscriptionActive, model.SubscriptionActive, model.SubscriptionActive,
		model.SubscriptionActive, model.SubscriptionActive, model.SubscriptionActive,
		model.SubscriptionActive, model.SubscriptionActive, model.SubscriptionActive,
		model.SubscriptionCanceled,
	}
)

type Options struct {
	Seed              uint64
	Customers         int
	SubscriptionRatio float64   // fraction of customers holding a subscription
	ChargeSuccessRate float64   // probability a single charge succeeds
	BaseDate          time.Time // earliest customer signup
	SignupWindowDays  int
	Now               func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Seed:              42,
		Customers:         200,
		SubscriptionRatio: 0.4,
		ChargeSuccessRate: 0.95,
		BaseDate:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		SignupWindowDays:  180,
		Now:               time.Now,
	}
}

func (o Options) Validate() error {
	if o.Customers < 0 {
		return fmt.Errorf("invalid customer count %d", o.Customers)
	}
	if o.SubscriptionRatio < 0 || o.SubscriptionRatio > 1 {
		return fmt.Errorf("invalid subscription ratio %v", o.SubscriptionRatio)
	}
	if o.ChargeSuccessRate < 0 || o.ChargeSuccessRate > 1 {
		return fmt.Errorf("invalid charge success rate %v", o.ChargeSuccessRate)
	}
	if o.SignupWindowDays < 0 {
		return fmt.Errorf("invalid signup window %d", o.SignupWindowDays)
	}
	if o.BaseDate.IsZero() {
		return errors.New("base date is required")
	}
	return nil
}

// Generator draws every random value from a single seeded stream, so the
// call order of its methods is part of the output contract.
type Generator struct {
	opts Options
	rng  *rand.Rand
}

func New(opts Options) *Generator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// Customers generates count customers. Ids depend only on the index.
func (g *Generator) Customers(count int) []model.Customer {
	out := make([]model.Customer, 0, count)
	for i := 0; i < count; i++ {
		created := g.opts.BaseDate.Add(time.Duration(g.intRange(0, g.opts.SignupWindowDays)) * day)
		out = append(out, model.Customer{
			ID:         "cus_" + hashID(strconv.Itoa(i)),
			Object:     model.ObjectCustomer,
			Email:      fmt.Sprintf("customer%d@example.com", i),
			Name:       fmt.Sprintf("Customer %d", i),
			Created:    created.Unix(),
			Currency:   currency,
			Delinquent: false,
			Metadata: model.CustomerMetadata{
				Company:  pick(g.rng, companies),
				Industry: pick(g.rng, industries),
			},
		})
	}
	return out
}

// Subscriptions samples SubscriptionRatio of customers without replacement
// and gives each sampled customer exactly one subscription.
func (g *Generator) Subscriptions(customers []model.Customer) []model.Subscription {
	k := int(float64(len(customers)) * g.opts.SubscriptionRatio)
	sampled := g.rng.Perm(len(customers))[:k]

	out := make([]model.Subscription, 0, k)
	for _, idx := range sampled {
		cust := customers[idx]
		plan := pick(g.rng, Plans)
		created := time.Unix(cust.Created, 0).Add(time.Duration(g.intRange(1, 14)) * day)
		status := pick(g.rng, statusWeights)

		var canceledAt *int64
		if status == model.SubscriptionCanceled {
			ts := created.Add(time.Duration(g.intRange(30, 120)) * day).Unix()
			canceledAt = &ts
		}

		out = append(out, model.Subscription{
			ID:                 "sub_" + hashID(cust.ID),
			Object:             model.ObjectSubscription,
			CustomerID:         cust.ID,
			Status:             status,
			Plan:               plan,
			CurrentPeriodStart: created.Unix(),
			CurrentPeriodEnd:   created.Add(billingStep).Unix(),
			Created:            created.Unix(),
			CanceledAt:         canceledAt,
			Metadata:           model.SubscriptionMetadata{PlanName: plan.Product},
		})
	}
	return out
}

// Charges emits one charge per 30-day cycle of every subscription.
func (g *Generator) Charges(subs []model.Subscription) []model.Charge {
	now := g.opts.Now().Unix()
	var out []model.Charge
	for _, sub := range subs {
		eachCycle(sub, now, func(n int, start time.Time) {
			status := model.ChargeFailed
			if g.rng.Float64() < g.opts.ChargeSuccessRate {
				status = model.ChargeSucceeded
			}
			out = append(out, model.Charge{
				ID:         "ch_" + hashID(sub.ID+strconv.Itoa(n)),
				Object:     model.ObjectCharge,
				Amount:     sub.Plan.Amount,
				Currency:   currency,
				CustomerID: sub.CustomerID,
				Status:     status,
				Paid:       status == model.ChargeSucceeded,
				Created:    start.Unix(),
				Metadata: model.ChargeMetadata{
					SubscriptionID: sub.ID,
					Plan:           sub.Plan.ID,
				},
			})
		})
	}
	return out
}

// Invoices follows the same cadence as Charges but draws no randomness:
// every invoice is paid in full.
func (g *Generator) Invoices(subs []model.Subscription) []model.Invoice {
	now := g.opts.Now().Unix()
	var out []model.Invoice
	for _, sub := range subs {
		eachCycle(sub, now, func(n int, start time.Time) {
			out = append(out, model.Invoice{
				ID:             "in_" + hashID(sub.ID+strconv.Itoa(n)),
				Object:         model.ObjectInvoice,
				CustomerID:     sub.CustomerID,
				SubscriptionID: sub.ID,
				AmountDue:      sub.Plan.Amount,
				AmountPaid:     sub.Plan.Amount,
				Status:         "paid",
				Created:        start.Unix(),
				Currency:       currency,
				PeriodStart:    start.Unix(),
				PeriodEnd:      start.Add(billingStep).Unix(),
			})
		})
	}
	return out
}

// eachCycle walks created, created+30d, ... while strictly before the
// subscription's end date.
func eachCycle(sub model.Subscription, now int64, fn func(n int, start time.Time)) {
	end := sub.EndDate(now)
	current := time.Unix(sub.Created, 0)
	for n := 0; current.Unix() < end; n++ {
		fn(n, current)
		current = current.Add(billingStep)
	}
}

// intRange returns a uniform integer in [lo, hi].
func (g *Generator) intRange(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func hashID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:idHashLen]
}
