package model

import "time"

// The product-analytics sample dataset. Ids are integer surrogates assigned
// in generation order.

type User struct {
	ID          int64      `db:"id"`
	Email       string     `db:"email"`
	Name        string     `db:"name"`
	Company     string     `db:"company"`
	CreatedAt   time.Time  `db:"created_at"`
	ActivatedAt *time.Time `db:"activated_at"`
	Plan        *string    `db:"plan"`
}

type UserSubscription struct {
	ID                   int64              `db:"id"`
	UserID               int64              `db:"user_id"`
	StripeSubscriptionID string             `db:"stripe_subscription_id"`
	Plan                 string             `db:"plan"`
	Status               SubscriptionStatus `db:"status"`
	MRRCents             int64              `db:"mrr_cents"`
	StartedAt            time.Time          `db:"started_at"`
	CanceledAt           *time.Time         `db:"canceled_at"`
	CreatedAt            time.Time          `db:"created_at"`
}

type EventProperties struct {
	Source     string `json:"source"`
	DurationMs int    `json:"duration_ms"`
}

type Event struct {
	ID         int64           `db:"id"`
	UserID     int64           `db:"user_id"`
	Name       string          `db:"event_name"`
	Properties EventProperties `db:"-"`
	CreatedAt  time.Time       `db:"created_at"`
}

type StripeCharge struct {
	ID          string    `db:"id"`
	CustomerID  string    `db:"customer_id"`
	AmountCents int64     `db:"amount_cents"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}
