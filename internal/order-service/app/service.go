// Package app implements the order operations on top of the order domain:
// every mutation loads the order, applies one domain transition and goes
// through save, which recomputes totals before anything is written.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clickmarket/marketplace/internal/order-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/events"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	"github.com/clickmarket/marketplace/internal/pkg/money"
	"github.com/clickmarket/marketplace/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("order")

// Voider reverses the documents hanging off an order (payments, deliveries)
// through their own operations when the order is cancelled.
type Voider interface {
	VoidForOrder(ctx context.Context, orderID, reason string) error
}

type Service struct {
	repo      domain.Repository
	voiders   []Voider
	publisher events.Publisher
	clock     func() time.Time
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithVoiders registers the services that must be voided on cancellation,
// in the order they run.
func WithVoiders(v ...Voider) Option {
	return func(s *Service) { s.voiders = append(s.voiders, v...) }
}

func NewService(repo domain.Repository, publisher events.Publisher, opts ...Option) *Service {
	s := &Service{repo: repo, publisher: publisher, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	return s
}

type CreateOrderInput struct {
	// ID is optional. The checkout coordinator picks it up front so its log
	// is keyed by the order from the first entry.
	ID          string
	CustomerID  string
	Items       []money.LineItem
	Adjustments money.Adjustments
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (o *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	o, err = domain.NewOrder(id, in.CustomerID, in.Items, in.Adjustments)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, o, true, "order.created"); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", o.ID,
		"customer_id", o.CustomerID,
		"grand_total", o.GrandTotal.String(),
	)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f listing.Filter) (listing.Page[*domain.Order], error) {
	f, err := f.Normalize(domain.SortableFields...)
	if err != nil {
		return listing.Page[*domain.Order]{}, err
	}
	if f.Status != "" {
		if _, err := domain.ParseStatus(f.Status); err != nil {
			return listing.Page[*domain.Order]{}, err
		}
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return listing.Page[*domain.Order]{}, err
	}
	return listing.Page[*domain.Order]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) ConfirmOrder(ctx context.Context, id string) (o *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.Confirm")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.mutate(ctx, id, "order.confirmed", func(o *domain.Order) error {
		return o.Confirm(s.clock())
	})
}

// UpdateLineItems replaces the items and adjustments of a draft order.
func (s *Service) UpdateLineItems(ctx context.Context, id string, items []money.LineItem, adj money.Adjustments) (*domain.Order, error) {
	return s.mutate(ctx, id, "order.updated", func(o *domain.Order) error {
		return o.ReplaceItems(items, adj)
	})
}

// UpdateStatus moves the order one step forward (confirmed, processing,
// shipped, delivered). Use CancelOrder to cancel.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (o *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.UpdateStatus")
	defer func() { telemetry.EndSpan(span, err) }()

	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "order.status_changed", func(o *domain.Order) error {
		return o.Advance(to, s.clock())
	})
}

// CancelOrder voids the order's payments and deliveries, then cancels the
// order itself. The order is left untouched if any void fails.
func (s *Service) CancelOrder(ctx context.Context, id, reason string) (o *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.Cancel")
	defer func() { telemetry.EndSpan(span, err) }()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	trial := current.Clone()
	if err := trial.Cancel(reason, s.clock()); err != nil {
		return nil, err
	}

	for _, v := range s.voiders {
		if err := v.VoidForOrder(ctx, id, reason); err != nil {
			slog.ErrorContext(ctx, "failed to void order documents", "order_id", id, "error", err)
			return nil, fmt.Errorf("cancel order %s: %w", id, err)
		}
	}

	o, err = s.mutate(ctx, id, "order.cancelled", func(o *domain.Order) error {
		return o.Cancel(reason, s.clock())
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order cancelled", "order_id", id, "reason", reason)
	return o, nil
}

// mutate loads the order, applies fn to a copy and saves it.
func (s *Service) mutate(ctx context.Context, id, eventType string, fn func(*domain.Order) error) (*domain.Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o := current.Clone()
	if err := fn(o); err != nil {
		return nil, err
	}
	if err := s.save(ctx, o, false, eventType); err != nil {
		return nil, err
	}
	return o, nil
}

// save is the only write path for orders.
func (s *Service) save(ctx context.Context, o *domain.Order, isNew bool, eventType string) error {
	if err := o.Recompute(); err != nil {
		return err
	}

	now := s.clock().UTC()
	o.UpdatedAt = now
	if isNew {
		o.CreatedAt = now
		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}
	} else if err := s.repo.Update(ctx, o); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, o.ID, events.New(eventType, o.ID, now, o)); err != nil {
		slog.WarnContext(ctx, "failed to publish order event", "order_id", o.ID, "type", eventType, "error", err)
	}
	return nil
}
