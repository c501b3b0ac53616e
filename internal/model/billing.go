package model

// Object tags carried in the "object" field of every record, matching the
// payment-provider wire format.
const (
	ObjectCustomer     = "customer"
	ObjectSubscription = "subscription"
	ObjectPlan         = "plan"
	ObjectCharge       = "charge"
	ObjectInvoice      = "invoice"
	ObjectList         = "list"
)

type CustomerMetadata struct {
	Company  string `json:"company"`
	Industry string `json:"industry"`
}

type Customer struct {
	ID         string           `json:"id"`
	Object     string           `json:"object"`
	Email      string           `json:"email"`
	Name       string           `json:"name"`
	Created    int64            `json:"created"`
	Currency   string           `json:"currency"`
	Delinquent bool             `json:"delinquent"`
	Metadata   CustomerMetadata `json:"metadata"`
}

type Plan struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Interval string `json:"interval"`
	Product  string `json:"product"`
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) String() string { return string(s) }

type SubscriptionMetadata struct {
	PlanName string `json:"plan_name"`
}

type Subscription struct {
	ID                 string               `json:"id"`
	Object             string               `json:"object"`
	CustomerID         string               `json:"customer"`
	Status             SubscriptionStatus   `json:"status"`
	Plan               Plan                 `json:"plan"`
	CurrentPeriodStart int64                `json:"current_period_start"`
	CurrentPeriodEnd   int64                `json:"current_period_end"`
	Created            int64                `json:"created"`
	CanceledAt         *int64               `json:"canceled_at"` // set iff status == canceled
	Metadata           SubscriptionMetadata `json:"metadata"`
}

// EndDate is the exclusive upper bound of the subscription's billing series:
// the cancellation time when canceled, otherwise now.
func (s Subscription) EndDate(now int64) int64 {
	if s.CanceledAt != nil {
		return *s.CanceledAt
	}
	return now
}

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeFailed    ChargeStatus = "failed"
)

type ChargeMetadata struct {
	SubscriptionID string `json:"subscription_id"`
	Plan           string `json:"plan"`
}

type Charge struct {
	ID         string         `json:"id"`
	Object     string         `json:"object"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	CustomerID string         `json:"customer"`
	Status     ChargeStatus   `json:"status"`
	Paid       bool           `json:"paid"`
	Created    int64          `json:"created"`
	Metadata   ChargeMetadata `json:"metadata"`
}

type Invoice struct {
	ID             string `json:"id"`
	Object         string `json:"object"`
	CustomerID     string `json:"customer"`
	SubscriptionID string `json:"subscription"`
	AmountDue      int64  `json:"amount_due"`
	AmountPaid     int64  `json:"amount_paid"`
	Status         string `json:"status"`
	Created        int64  `json:"created"`
	Currency       string `json:"currency"`
	PeriodStart    int64  `json:"period_start"`
	PeriodEnd      int64  `json:"period_end"`
}

// List is the paginated list envelope returned by every /v1 listing.
type List[T any] struct {
	Object  string `json:"object"`
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	URL     string `json:"url"`
}

// RecordTotals counts the records held by a dataset, per collection.
type RecordTotals struct {
	Customers     int `json:"customers"`
	Subscriptions int `json:"subscriptions"`
	Charges       int `json:"charges"`
	Invoices      int `json:"invoices"`
}

type Health struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	Endpoints    []string     `json:"endpoints"`
	TotalRecords RecordTotals `json:"total_records"`
}

const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAPI            = "api_error"
)

// APIError is the payment-provider error object.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
