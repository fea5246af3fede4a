// Package listing holds the filter and pagination shape shared by every
// read path (orders, payments, invoices, deliveries).
package listing

import (
	"slices"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	SortCreatedAt = "created_at"
)

// Filter selects a page of entities. From and To bound created_at as the
// half-open range [From, To); a zero bound is open.
type Filter struct {
	Status     string
	CustomerID string
	OrderID    string
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
	SortBy     string
	Desc       bool
}

// Page is one page of results plus the total number of matches.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize fills defaults and rejects a sort key outside sortable.
// created_at is always sortable.
func (f Filter) Normalize(sortable ...string) (Filter, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.SortBy == "" {
		f.SortBy = SortCreatedAt
	}
	if f.SortBy != SortCreatedAt && !slices.Contains(sortable, f.SortBy) {
		return f, apperr.Newf(apperr.Validation, "cannot sort by %q", f.SortBy)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, apperr.New(apperr.Validation, "date range start must be before its end")
	}
	return f, nil
}

func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// InRange reports whether t falls in [From, To).
func (f Filter) InRange(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To) {
		return false
	}
	return true
}
