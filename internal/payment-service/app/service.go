package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	"github.com/clickmarket/marketplace/internal/payment-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/events"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	"github.com/clickmarket/marketplace/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("payment")

// Service implements the payment status contract. Gateway integration lives
// outside; it reports back through StartProcessing, ValidatePayment and
// FailPayment.
type Service struct {
	repo      domain.Repository
	orders    Orders
	publisher events.Publisher
	clock     func() time.Time
	sf        singleflight.Group
}

// Orders resolves the order a payment is attached to.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithOrders makes CreatePayment resolve the order: unknown orders are
// rejected, the customer is taken from the order and the amount may not
// exceed its grand total.
func WithOrders(orders Orders) Option {
	return func(s *Service) { s.orders = orders }
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

type CreatePaymentInput struct {
	OrderID              string
	CustomerID           string
	Amount               decimal.Decimal
	Method               string
	PhoneNumber          string
	TransactionReference string
}

func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (p *domain.Payment, err error) {
	ctx, span := tracer.Start(ctx, "payment.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	if s.orders != nil && in.OrderID != "" {
		o, err := s.orders.Get(ctx, in.OrderID)
		if err != nil {
			return nil, err
		}
		if in.Amount.GreaterThan(o.GrandTotal) {
			return nil, apperr.Newf(apperr.Validation, "amount %s exceeds the order total %s",
				in.Amount.String(), o.GrandTotal.String())
		}
		in.CustomerID = o.CustomerID
	}

	p, err = domain.NewPayment(uuid.NewString(), in.OrderID, in.CustomerID, in.Amount, in.Method, in.PhoneNumber, in.TransactionReference)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, p, true, "payment.created"); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "payment created",
		"payment_id", p.ID,
		"order_id", p.OrderID,
		"method", p.Method,
		"amount", p.Amount.String(),
	)
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, f listing.Filter) (listing.Page[*domain.Payment], error) {
	f, err := f.Normalize(domain.SortableFields...)
	if err != nil {
		return listing.Page[*domain.Payment]{}, err
	}
	if f.Status != "" {
		if _, err := domain.ParseStatus(f.Status); err != nil {
			return listing.Page[*domain.Payment]{}, err
		}
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return listing.Page[*domain.Payment]{}, err
	}
	return listing.Page[*domain.Payment]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// PaymentsForOrder returns every payment attempt of an order, oldest first.
func (s *Service) PaymentsForOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) StartProcessing(ctx context.Context, id, reference string) (*domain.Payment, error) {
	return s.mutate(ctx, id, "payment.processing", func(p *domain.Payment) error {
		return p.StartProcessing(reference)
	})
}

// ValidatePayment marks the payment succeeded. Concurrent validations of the
// same payment in this process share one store round trip.
func (s *Service) ValidatePayment(ctx context.Context, id string) (p *domain.Payment, err error) {
	ctx, span := tracer.Start(ctx, "payment.Validate")
	defer func() { telemetry.EndSpan(span, err) }()

	v, err, shared := s.sf.Do("validate:"+id, func() (interface{}, error) {
		return s.mutate(ctx, id, "payment.succeeded", func(p *domain.Payment) error {
			return p.Validate(s.clock())
		})
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "payment validation deduplicated", "payment_id", id)
	}
	return v.(*domain.Payment).Clone(), nil
}

func (s *Service) FailPayment(ctx context.Context, id, message string) (*domain.Payment, error) {
	p, err := s.mutate(ctx, id, "payment.failed", func(p *domain.Payment) error {
		return p.Fail(message)
	})
	if err != nil {
		return nil, err
	}
	slog.WarnContext(ctx, "payment failed", "payment_id", id, "reason", message)
	return p, nil
}

func (s *Service) RefundPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return s.mutate(ctx, id, "payment.refunded", func(p *domain.Payment) error {
		return p.Refund(s.clock())
	})
}

func (s *Service) CancelPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return s.mutate(ctx, id, "payment.cancelled", func(p *domain.Payment) error {
		return p.Cancel(s.clock())
	})
}

// VoidForOrder reverses every payment of an order being cancelled: settled
// payments are refunded, open ones cancelled, closed ones left alone.
func (s *Service) VoidForOrder(ctx context.Context, orderID, reason string) error {
	payments, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		switch p.Status {
		case domain.StatusSucceeded:
			_, err = s.RefundPayment(ctx, p.ID)
		case domain.StatusPending, domain.StatusProcessing, domain.StatusFailed:
			_, err = s.CancelPayment(ctx, p.ID)
		default:
			continue
		}
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "payment voided", "payment_id", p.ID, "order_id", orderID, "reason", reason)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, id, eventType string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := current.Clone()
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.save(ctx, p, false, eventType); err != nil {
		return nil, err
	}
	return p, nil
}

// save is the only write path for payments.
func (s *Service) save(ctx context.Context, p *domain.Payment, isNew bool, eventType string) error {
	now := s.clock().UTC()
	p.UpdatedAt = now
	if isNew {
		p.CreatedAt = now
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
	} else if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, p.OrderID, events.New(eventType, p.ID, now, p)); err != nil {
		slog.WarnContext(ctx, "failed to publish payment event", "payment_id", p.ID, "type", eventType, "error", err)
	}
	return nil
}
