package generator

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/jmehdipour/billing-sandbox/internal/model"
)

// PlanPrices maps the sample dataset's plan names to monthly cents.
var PlanPrices = map[string]int64{
	"starter":      2900,
	"professional": 9900,
	"enterprise":   29900,
}

var (
	// starter is three times as likely as the others
	samplePlans  = []string{"starter", "starter", "starter", "professional", "enterprise"}
	eventTypes   = []string{"project_created", "task_created", "task_completed", "team_member_invited", "comment_added", "file_uploaded", "view_dashboard", "login"}
	eventSources = []string{"web", "mobile", "api"}
)

type SampleOptions struct {
	Seed            uint64
	Users           int
	SignupDays      int     // users sign up uniformly over the last SignupDays
	ActivationRate  float64 // share of users activating within a week
	ConversionRate  float64 // share of activated users picking a paid plan
	RetentionRate   float64 // share of subscriptions still active
	EventWindowDays int
	Now             func() time.Time
}

func DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Seed:            42,
		Users:           500,
		SignupDays:      180,
		ActivationRate:  0.7,
		ConversionRate:  0.4,
		RetentionRate:   0.9,
		EventWindowDays: 90,
		Now:             time.Now,
	}
}

// SampleData is the product-analytics dataset written by the seed command.
type SampleData struct {
	Users         []model.User
	Subscriptions []model.UserSubscription
	Events        []model.Event
	Charges       []model.StripeCharge
}

type sampler struct {
	opts  SampleOptions
	now   time.Time
	rng   *rand.Rand
	ids   *rand.ChaCha8
	faker *gofakeit.Faker
}

// BuildSample generates users first, then subscriptions, events and charges
// derived from them.
func BuildSample(opts SampleOptions) (*SampleData, error) {
	if opts.Users < 0 {
		return nil, fmt.Errorf("invalid user count %d", opts.Users)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], opts.Seed)
	s := &sampler{
		opts:  opts,
		now:   opts.Now().UTC().Truncate(time.Second),
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed+1)),
		ids:   rand.NewChaCha8(seed),
		faker: gofakeit.New(opts.Seed),
	}

	data := &SampleData{Users: s.users()}
	data.Subscriptions = s.subscriptions(data.Users)
	data.Events = s.events(data.Users)
	data.Charges = s.charges(data.Subscriptions)
	return data, nil
}

func (s *sampler) users() []model.User {
	start := s.now.Add(-time.Duration(s.opts.SignupDays) * day)
	out := make([]model.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		signup := start.Add(time.Duration(s.intRange(0, s.opts.SignupDays)) * day)

		var activatedAt *time.Time
		if s.rng.Float64() < s.opts.ActivationRate {
			at := signup.Add(time.Duration(s.intRange(1, 168)) * time.Hour)
			activatedAt = &at
		}

		var plan *string
		if activatedAt != nil && s.rng.Float64() < s.opts.ConversionRate {
			p := pick(s.rng, samplePlans)
			plan = &p
		}

		out = append(out, model.User{
			ID:          int64(i + 1),
			Email:       fmt.Sprintf("%s_%d@example.com", s.faker.Username(), i),
			Name:        s.faker.Name(),
			Company:     s.faker.Company(),
			CreatedAt:   signup,
			ActivatedAt: activatedAt,
			Plan:        plan,
		})
	}
	return out
}

func (s *sampler) subscriptions(users []model.User) []model.UserSubscription {
	var out []model.UserSubscription
	for _, u := range users {
		if u.Plan == nil {
			continue
		}
		status := model.SubscriptionCanceled
		if s.rng.Float64() < s.opts.RetentionRate {
			status = model.SubscriptionActive
		}
		started := u.ActivatedAt.Add(time.Duration(s.intRange(0, 7)) * day)

		var canceledAt *time.Time
		if status == model.SubscriptionCanceled {
			at := started.Add(time.Duration(s.intRange(30, 150)) * day)
			canceledAt = &at
		}

		out = append(out, model.UserSubscription{
			ID:                   int64(len(out) + 1),
			UserID:               u.ID,
			StripeSubscriptionID: "sub_" + s.shortUUID(),
			Plan:                 *u.Plan,
			Status:               status,
			MRRCents:             PlanPrices[*u.Plan],
			StartedAt:            started,
			CanceledAt:           canceledAt,
			CreatedAt:            started,
		})
	}
	return out
}

func (s *sampler) events(users []model.User) []model.Event {
	window := time.Duration(s.opts.EventWindowDays) * day
	var out []model.Event
	for _, u := range users {
		if u.ActivatedAt == nil {
			continue
		}
		n := s.intRange(5, 50)
		from := *u.ActivatedAt
		to := from.Add(window)
		if s.now.Before(to) {
			to = s.now
		}
		if !to.After(from) {
			continue
		}
		span := int(to.Sub(from) / time.Second)
		for j := 0; j < n; j++ {
			out = append(out, model.Event{
				ID:        int64(len(out) + 1),
				UserID:    u.ID,
				CreatedAt: from.Add(time.Duration(s.intRange(0, span)) * time.Second),
				Name:      pick(s.rng, eventTypes),
				Properties: model.EventProperties{
					Source:     pick(s.rng, eventSources),
					DurationMs: s.intRange(100, 5000),
				},
			})
		}
	}
	return out
}

// charges bills every subscription monthly from its start. The customer id is
// derived once per user so a user's charges share it.
func (s *sampler) charges(subs []model.UserSubscription) []model.StripeCharge {
	customers := make(map[int64]string, len(subs))
	var out []model.StripeCharge
	for _, sub := range subs {
		cus, ok := customers[sub.UserID]
		if !ok {
			cus = "cus_" + s.shortUUID()
			customers[sub.UserID] = cus
		}
		end := s.now
		if sub.CanceledAt != nil {
			end = *sub.CanceledAt
		}
		for current := sub.StartedAt; current.Before(end); current = current.Add(billingStep) {
			out = append(out, model.StripeCharge{
				ID:          "ch_" + s.shortUUID(),
				CustomerID:  cus,
				AmountCents: sub.MRRCents,
				Status:      string(model.ChargeSucceeded),
				CreatedAt:   current,
			})
		}
	}
	return out
}

func (s *sampler) intRange(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo+1)
}

// shortUUID is a v4 UUID drawn from the seeded stream, cut to 24 characters.
func (s *sampler) shortUUID() string {
	id, err := uuid.NewRandomFromReader(s.ids)
	if err != nil {
		// ChaCha8.Read never fails
		panic(err)
	}
	return id.String()[:idHashLen]
}
