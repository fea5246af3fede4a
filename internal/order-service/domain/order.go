package domain

import (
	"context"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	"github.com/clickmarket/marketplace/internal/pkg/money"
)

type OrderStatus string

const (
	StatusDraft      OrderStatus = "draft"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// next is the single forward step allowed from each status.
var next = map[OrderStatus]OrderStatus{
	StatusDraft:      StatusConfirmed,
	StatusConfirmed:  StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

func ParseStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusDraft, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown order status %q", s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether to is the next forward step from s, or a
// cancellation of a non-terminal order.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if to == StatusCancelled {
		return !s.IsTerminal()
	}
	return next[s] == to
}

// Order owns its line items. Totals are derived by Recompute and never taken
// from input.
type Order struct {
	ID         string           `json:"id"`
	CustomerID string           `json:"customer_id"`
	Items      []money.LineItem `json:"items"`
	money.Adjustments
	money.Totals
	Status       OrderStatus `json:"status"`
	CancelReason string      `json:"cancel_reason,omitempty"`
	Version      int         `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ConfirmedAt  *time.Time  `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time  `json:"cancelled_at,omitempty"`
}

// NewOrder validates the input and returns a draft order with its totals
// computed.
func NewOrder(id, customerID string, items []money.LineItem, adj money.Adjustments) (*Order, error) {
	if customerID == "" {
		return nil, apperr.New(apperr.Validation, "customer id is required")
	}
	if err := money.ValidateItems(items); err != nil {
		return nil, err
	}
	o := &Order{
		ID:          id,
		CustomerID:  customerID,
		Items:       money.CopyItems(items),
		Adjustments: adj,
		Status:      StatusDraft,
	}
	if err := o.Recompute(); err != nil {
		return nil, err
	}
	return o, nil
}

// Recompute derives line totals, subtotal, tax and grand total from the
// items and adjustments.
func (o *Order) Recompute() error {
	items, totals, err := money.ComputeTotals(o.Items, o.Adjustments)
	if err != nil {
		return err
	}
	o.Items = items
	o.Totals = totals
	return nil
}

func (o *Order) Confirm(now time.Time) error {
	if o.Status != StatusDraft {
		return apperr.Newf(apperr.InvalidState, "order %s is %s, only draft orders can be confirmed", o.ID, o.Status)
	}
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now
	return nil
}

// ReplaceItems swaps the line items and adjustments of a draft order. Once
// confirmed, the content of an order is frozen.
func (o *Order) ReplaceItems(items []money.LineItem, adj money.Adjustments) error {
	if o.Status != StatusDraft {
		return apperr.Newf(apperr.Immutable, "order %s is %s, line items can no longer change", o.ID, o.Status)
	}
	if err := money.ValidateItems(items); err != nil {
		return err
	}
	o.Items = money.CopyItems(items)
	o.Adjustments = adj
	return nil
}

// Advance moves the order one step forward. Cancellation goes through Cancel.
func (o *Order) Advance(to OrderStatus, now time.Time) error {
	if to == StatusCancelled || !o.Status.CanTransitionTo(to) {
		return apperr.Newf(apperr.InvalidState, "order %s cannot move from %s to %s", o.ID, o.Status, to)
	}
	if to == StatusConfirmed {
		return o.Confirm(now)
	}
	o.Status = to
	return nil
}

func (o *Order) Cancel(reason string, now time.Time) error {
	if o.Status.IsTerminal() {
		return apperr.Newf(apperr.InvalidState, "order %s is already %s", o.ID, o.Status)
	}
	o.Status = StatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	return nil
}

// Clone returns a deep copy, so a failed operation never leaks changes into
// a value the caller still holds.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = money.CopyItems(o.Items)
	if o.ConfirmedAt != nil {
		t := *o.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// SortableFields are the list sort keys accepted besides created_at.
var SortableFields = []string{"updated_at", "grand_total"}

// Repository is the port for order persistence. Update is optimistic: it
// fails with apperr.Conflict when the stored version differs from o.Version,
// and bumps o.Version on success.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f listing.Filter) ([]*Order, int, error)
}
