// Package query answers filtered, cursor-paginated list reads over a
// generated dataset.
package query

import (
	"errors"
	"sort"

	"github.com/jmehdipour/billing-sandbox/internal/generator"
	"github.com/jmehdipour/billing-sandbox/internal/model"
)

const DefaultLimit = 100

var ErrCursorNotFound = errors.New("cursor not found")

type Options struct {
	// LegacyCursorFallback restarts a page at index 0 when the cursor id is
	// unknown instead of failing with ErrCursorNotFound.
	LegacyCursorFallback bool
	// LegacyHasMore reports has_more only for customers; other listings
	// ignore cursors and always report false.
	LegacyHasMore bool
	// DefaultLimit applies when a request names no limit; 0 means DefaultLimit.
	DefaultLimit int
	// MaxLimit clamps requested page sizes; 0 disables clamping.
	MaxLimit int
}

type ListParams struct {
	Limit         int
	StartingAfter string
	Status        string // subscriptions only
	Customer      string // charges and invoices only
}

type Page[T any] struct {
	Data    []T
	HasMore bool
}

// Service is read-only over the dataset it wraps.
type Service struct {
	ds   *generator.Dataset
	opts Options
}

func New(ds *generator.Dataset, opts Options) *Service {
	return &Service{ds: ds, opts: opts}
}

func (s *Service) Totals() model.RecordTotals { return s.ds.Totals() }

func (s *Service) Customers(p ListParams) (Page[model.Customer], error) {
	return paginate(s.ds.Customers, func(c model.Customer) string { return c.ID }, s.limit(p), p.StartingAfter, s.opts.LegacyCursorFallback)
}

func (s *Service) Subscriptions(p ListParams) (Page[model.Subscription], error) {
	data := s.ds.Subscriptions
	if p.Status != "" {
		data = filter(data, func(sub model.Subscription) bool { return string(sub.Status) == p.Status })
	}
	return pageOf(s, data, func(sub model.Subscription) string { return sub.ID }, p)
}

func (s *Service) Charges(p ListParams) (Page[model.Charge], error) {
	data := s.ds.Charges
	if p.Customer != "" {
		data = filter(data, func(c model.Charge) bool { return c.CustomerID == p.Customer })
	}
	data = newestFirst(data, func(c model.Charge) int64 { return c.Created })
	return pageOf(s, data, func(c model.Charge) string { return c.ID }, p)
}

func (s *Service) Invoices(p ListParams) (Page[model.Invoice], error) {
	data := s.ds.Invoices
	if p.Customer != "" {
		data = filter(data, func(in model.Invoice) bool { return in.CustomerID == p.Customer })
	}
	data = newestFirst(data, func(in model.Invoice) int64 { return in.Created })
	return pageOf(s, data, func(in model.Invoice) string { return in.ID }, p)
}

// pageOf applies the non-customer pagination rules.
func pageOf[T any](s *Service, data []T, id func(T) string, p ListParams) (Page[T], error) {
	limit := s.limit(p)
	if s.opts.LegacyHasMore {
		if limit < len(data) {
			data = data[:limit]
		}
		return Page[T]{Data: data}, nil
	}
	return paginate(data, id, limit, p.StartingAfter, s.opts.LegacyCursorFallback)
}

func (s *Service) limit(p ListParams) int {
	limit := p.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if s.opts.MaxLimit > 0 && limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	return limit
}

// paginate returns up to limit items following the item whose id equals
// cursor. An empty cursor starts at the beginning.
func paginate[T any](data []T, id func(T) string, limit int, cursor string, fallback bool) (Page[T], error) {
	start := 0
	if cursor != "" {
		idx := indexOf(data, id, cursor)
		switch {
		case idx >= 0:
			start = idx + 1
		case !fallback:
			return Page[T]{}, ErrCursorNotFound
		}
	}

	end := min(start+limit, len(data))
	return Page[T]{
		Data:    data[start:end],
		HasMore: start+limit < len(data),
	}, nil
}

func indexOf[T any](data []T, id func(T) string, want string) int {
	for i, item := range data {
		if id(item) == want {
			return i
		}
	}
	return -1
}

func filter[T any](data []T, keep func(T) bool) []T {
	out := make([]T, 0, len(data))
	for _, item := range data {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// newestFirst returns a copy sorted by created descending; equal timestamps
// keep generation order.
func newestFirst[T any](data []T, created func(T) int64) []T {
	out := make([]T, len(data))
	copy(out, data)
	sort.SliceStable(out, func(i, j int) bool { return created(out[i]) > created(out[j]) })
	return out
}
