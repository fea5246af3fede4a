package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clickmarket/marketplace/internal/delivery-service/domain"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/events"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	"github.com/clickmarket/marketplace/internal/pkg/sequence"
	"github.com/clickmarket/marketplace/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("delivery")

type Service struct {
	repo      domain.Repository
	tracking  *sequence.TrackingAllocator
	orders    Orders
	publisher events.Publisher
	clock     func() time.Time
}

type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithOrders makes CreateDelivery reject unknown orders and ship to the
// order's customer.
func WithOrders(orders Orders) Option {
	return func(s *Service) { s.orders = orders }
}

// WithTrackingAllocator replaces the allocator built over the repository.
func WithTrackingAllocator(a *sequence.TrackingAllocator) Option {
	return func(s *Service) { s.tracking = a }
}

func NewService(repo domain.Repository, publisher events.Publisher, opts ...Option) *Service {
	s := &Service{repo: repo, publisher: publisher, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracking == nil {
		s.tracking = sequence.NewTrackingAllocator(repo)
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	return s
}

// CreateDelivery stores a pending delivery. When no tracking number is
// given one is allocated; a unique conflict at insert time counts against
// the same attempt budget as a collision seen by the allocator.
func (s *Service) CreateDelivery(ctx context.Context, p domain.NewDeliveryParams) (d *domain.Delivery, err error) {
	ctx, span := tracer.Start(ctx, "delivery.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	if s.orders != nil && p.OrderID != "" {
		o, err := s.orders.Get(ctx, p.OrderID)
		if err != nil {
			return nil, err
		}
		p.CustomerID = o.CustomerID
	}

	d, err = domain.NewDelivery(uuid.NewString(), p, s.clock())
	if err != nil {
		return nil, err
	}
	if d.TrackingNumber != "" {
		if err := s.save(ctx, d, true, "delivery.created"); err != nil {
			return nil, err
		}
		return d, nil
	}

	for attempt := 1; ; attempt++ {
		d.TrackingNumber, err = s.tracking.Next(ctx)
		if err != nil {
			return nil, err
		}
		err = s.save(ctx, d, true, "delivery.created")
		if err == nil {
			break
		}
		if !apperr.IsKind(err, apperr.Conflict) {
			return nil, err
		}
		if attempt == sequence.MaxTrackingAttempts {
			return nil, apperr.Wrap(apperr.ResourceExhausted, err, "no free tracking number")
		}
	}

	slog.InfoContext(ctx, "delivery created",
		"delivery_id", d.ID,
		"order_id", d.OrderID,
		"tracking_number", d.TrackingNumber,
	)
	return d, nil
}

func (s *Service) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Track(ctx context.Context, trackingNumber string) (*domain.Delivery, error) {
	return s.repo.GetByTrackingNumber(ctx, trackingNumber)
}

func (s *Service) ListDeliveries(ctx context.Context, f listing.Filter) (listing.Page[*domain.Delivery], error) {
	f, err := f.Normalize(domain.SortableFields...)
	if err != nil {
		return listing.Page[*domain.Delivery]{}, err
	}
	if f.Status != "" {
		if _, err := domain.ParseStatus(f.Status); err != nil {
			return listing.Page[*domain.Delivery]{}, err
		}
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return listing.Page[*domain.Delivery]{}, err
	}
	return listing.Page[*domain.Delivery]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id, status, comment string) (d *domain.Delivery, err error) {
	ctx, span := tracer.Start(ctx, "delivery.ChangeStatus")
	defer func() { telemetry.EndSpan(span, err) }()

	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(d *domain.Delivery) error {
		return d.ChangeStatus(to, comment, s.clock())
	})
}

func (s *Service) AssignCourier(ctx context.Context, id string, c domain.Courier) (*domain.Delivery, error) {
	return s.mutate(ctx, id, func(d *domain.Delivery) error {
		d.AssignCourier(c, s.clock())
		return nil
	})
}

func (s *Service) MarkDelivered(ctx context.Context, id, recipientName, comment string) (*domain.Delivery, error) {
	return s.mutate(ctx, id, func(d *domain.Delivery) error {
		return d.MarkDelivered(recipientName, comment, s.clock())
	})
}

// VoidForOrder closes the open deliveries of a cancelled order: pending and
// prepared ones fail, in-transit ones are returned.
func (s *Service) VoidForOrder(ctx context.Context, orderID, reason string) error {
	deliveries, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	comment := "order cancelled"
	if reason != "" {
		comment += ": " + reason
	}
	for _, d := range deliveries {
		to, ok := d.VoidStatus()
		if !ok {
			continue
		}
		if _, err := s.ChangeStatus(ctx, d.ID, string(to), comment); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*domain.Delivery) error) (*domain.Delivery, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := current.Clone()
	if err := fn(d); err != nil {
		return nil, err
	}
	if err := s.save(ctx, d, false, "delivery.status_changed"); err != nil {
		return nil, err
	}
	return d, nil
}

// save is the only write path for deliveries.
func (s *Service) save(ctx context.Context, d *domain.Delivery, isNew bool, eventType string) error {
	now := s.clock().UTC()
	d.UpdatedAt = now
	if isNew {
		d.CreatedAt = now
		if err := s.repo.Create(ctx, d); err != nil {
			return err
		}
	} else if err := s.repo.Update(ctx, d); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, d.OrderID, events.New(eventType, d.ID, now, d)); err != nil {
		slog.WarnContext(ctx, "failed to publish delivery event", "delivery_id", d.ID, "type", eventType, "error", err)
	}
	return nil
}
