package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jmehdipour/billing-sandbox/internal/model"
)

var (
	ErrCircuitOpen = errors.New("payment api circuit open")
	ErrMalformed   = errors.New("malformed list response")
)

// APIError is a non-2xx answer from the payment API.
type APIError struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment api status=%d", e.Status)
	}
	return fmt.Sprintf("payment api status=%d type=%s: %s", e.Status, e.Type, e.Message)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Config struct {
	BaseURL       string
	APIKey        string
	PageSize      int           // default 100
	TimeoutMs     int           // default 10000
	MaxAttempts   int           // per page, default 3
	FailThreshold int           // default 3
	OpenForMs     int           // default 15000
	BaseDelay     time.Duration // first retry delay; doubled per attempt
}

// Client reads full collections from a payment API that paginates with
// limit/starting_after/has_more.
type Client struct {
	baseURL     string
	apiKey      string
	pageSize    int
	maxAttempts int
	baseDelay   time.Duration
	http        *http.Client
	br          *Breaker
}

func New(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.OpenForMs <= 0 {
		cfg.OpenForMs = 15000
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		pageSize:    cfg.PageSize,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		http:        &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		br:          NewBreaker(cfg.FailThreshold, time.Duration(cfg.OpenForMs)*time.Millisecond),
	}
}

func (c *Client) Customers(ctx context.Context) ([]model.Customer, error) {
	return fetchAll(ctx, c, "/v1/customers", func(v model.Customer) string { return v.ID })
}

func (c *Client) Subscriptions(ctx context.Context) ([]model.Subscription, error) {
	return fetchAll(ctx, c, "/v1/subscriptions", func(v model.Subscription) string { return v.ID })
}

func (c *Client) Charges(ctx context.Context) ([]model.Charge, error) {
	return fetchAll(ctx, c, "/v1/charges", func(v model.Charge) string { return v.ID })
}

func (c *Client) Invoices(ctx context.Context) ([]model.Invoice, error) {
	return fetchAll(ctx, c, "/v1/invoices", func(v model.Invoice) string { return v.ID })
}

// fetchAll follows has_more, passing the last id of each page as the next
// starting_after, until the listing is exhausted.
func fetchAll[T any](ctx context.Context, c *Client, path string, idOf func(T) string) ([]T, error) {
	var (
		out    []T
		cursor string
	)
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("starting_after", cursor)
		}

		var page model.List[T]
		if err := c.getWithRetry(ctx, path+"?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			if idOf(item) == "" {
				return nil, fmt.Errorf("%w: %s item without id", ErrMalformed, path)
			}
		}
		out = append(out, page.Data...)

		if !page.HasMore {
			return out, nil
		}
		if len(page.Data) == 0 {
			return nil, fmt.Errorf("%w: %s has_more on an empty page", ErrMalformed, path)
		}
		cursor = idOf(page.Data[len(page.Data)-1])
	}
}

func (c *Client) getWithRetry(ctx context.Context, path string, dst any) error {
	var last error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		err := c.getOnce(ctx, path, dst)
		if err == nil {
			return nil
		}
		last = err

		var apiErr *APIError
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrMalformed) ||
			(errors.As(err, &apiErr) && !apiErr.retryable()) {
			return err
		}
	}
	return last
}

// backoff doubles BaseDelay per attempt with ±10% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt))
	jitter := (rand.Float64()*2 - 1) * delay * 0.1
	return time.Duration(delay + jitter)
}

func (c *Client) getOnce(ctx context.Context, path string, dst any) error {
	if !c.br.Acquire() {
		return ErrCircuitOpen
	}
	if err := c.get(ctx, path, dst); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.retryable() {
			c.br.OnFailure()
		} else {
			c.br.OnSuccess()
		}
		return err
	}
	c.br.OnSuccess()
	return nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		apiErr := &APIError{Status: res.StatusCode}
		var body model.ErrorResponse
		if b, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10)); json.Unmarshal(b, &body) == nil {
			apiErr.Type, apiErr.Code, apiErr.Message = body.Error.Type, body.Error.Code, body.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return nil
}
