package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clickmarket/marketplace/internal/invoice-service/domain"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/events"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	"github.com/clickmarket/marketplace/internal/pkg/sequence"
	"github.com/clickmarket/marketplace/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("invoice")

// maxNumberAttempts bounds the retries when an allocated invoice number is
// already stored, which happens when the counter was reset behind the store.
const maxNumberAttempts = 5

// Service owns invoice numbering and the billing status machine. The overdue
// rule is applied inside save, so every write of an issued invoice past its
// due date stores it as overdue.
type Service struct {
	repo      domain.Repository
	numbers   *sequence.InvoiceAllocator
	orders    Orders
	publisher events.Publisher
	clock     func() time.Time
}

// Orders resolves the order an invoice bills.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithOrders makes CreateInvoice reject unknown orders and bill the
// order's customer.
func WithOrders(orders Orders) Option {
	return func(s *Service) { s.orders = orders }
}

func NewService(repo domain.Repository, numbers *sequence.InvoiceAllocator, publisher events.Publisher, opts ...Option) *Service {
	s := &Service{repo: repo, numbers: numbers, publisher: publisher, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	return s
}

type CreateInvoiceInput struct {
	domain.Draft
	// InvoiceNumber is optional; an empty value allocates the next number
	// of the current month.
	InvoiceNumber string
}

func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (inv *domain.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "invoice.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	if s.orders != nil && in.OrderID != "" {
		o, err := s.orders.Get(ctx, in.OrderID)
		if err != nil {
			return nil, err
		}
		in.CustomerID = o.CustomerID
	}

	inv, err = domain.NewInvoice(uuid.NewString(), in.InvoiceNumber, in.Draft)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceNumber != "" {
		if err := s.save(ctx, inv, true, "invoice.created"); err != nil {
			return nil, err
		}
		return inv, nil
	}

	if s.numbers == nil {
		return nil, ErrNoAllocator
	}
	for attempt := 1; ; attempt++ {
		inv.InvoiceNumber, err = s.numbers.Next(ctx, s.clock())
		if err != nil {
			return nil, err
		}
		err = s.save(ctx, inv, true, "invoice.created")
		if err == nil {
			break
		}
		if !apperr.IsKind(err, apperr.Conflict) || attempt == maxNumberAttempts {
			return nil, err
		}
		slog.WarnContext(ctx, "invoice number already taken, allocating another",
			"invoice_number", inv.InvoiceNumber,
			"attempt", attempt,
		)
	}

	slog.InfoContext(ctx, "invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"order_id", inv.OrderID,
	)
	return inv, nil
}

// GetInvoice returns the stored invoice. The overdue rule is a save-time
// rule: an issued invoice past due reads as issued until it is written again
// or the sweeper refreshes it.
func (s *Service) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) ListInvoices(ctx context.Context, f listing.Filter) (listing.Page[*domain.Invoice], error) {
	f, err := f.Normalize(domain.SortableFields...)
	if err != nil {
		return listing.Page[*domain.Invoice]{}, err
	}
	if f.Status != "" {
		if _, err := domain.ParseStatus(f.Status); err != nil {
			return listing.Page[*domain.Invoice]{}, err
		}
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return listing.Page[*domain.Invoice]{}, err
	}
	return listing.Page[*domain.Invoice]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) IssueInvoice(ctx context.Context, id string) (inv *domain.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "invoice.Issue")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.mutate(ctx, id, "invoice.issued", func(inv *domain.Invoice) error {
		return inv.Issue(s.clock())
	})
}

// MarkPaid settles the invoice. paidDate may be nil to use the current time.
func (s *Service) MarkPaid(ctx context.Context, id string, paidDate *time.Time, method string) (*domain.Invoice, error) {
	return s.mutate(ctx, id, "invoice.paid", func(inv *domain.Invoice) error {
		return inv.MarkPaid(paidDate, method, s.clock())
	})
}

func (s *Service) MarkPartiallyPaid(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.mutate(ctx, id, "invoice.partially_paid", func(inv *domain.Invoice) error {
		return inv.MarkPartiallyPaid()
	})
}

func (s *Service) CancelInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.mutate(ctx, id, "invoice.cancelled", func(inv *domain.Invoice) error {
		return inv.Cancel(s.clock())
	})
}

func (s *Service) MarkSent(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.mutate(ctx, id, "invoice.sent", func(inv *domain.Invoice) error {
		inv.MarkSent(s.clock())
		return nil
	})
}

func (s *Service) UpdateDraft(ctx context.Context, id string, d domain.Draft) (*domain.Invoice, error) {
	return s.mutate(ctx, id, "invoice.updated", func(inv *domain.Invoice) error {
		return inv.UpdateDraft(d)
	})
}

// Refresh saves the invoice unchanged, which re-derives its totals and
// applies the overdue rule.
func (s *Service) Refresh(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.mutate(ctx, id, "invoice.refreshed", func(*domain.Invoice) error { return nil })
}

// SweepOverdue stores as overdue up to limit issued invoices whose due date
// has passed, refreshing at most workers of them at a time, and returns how
// many it moved. A concurrent write of the same invoice wins; the sweeper
// picks it up on the next run if still due.
func (s *Service) SweepOverdue(ctx context.Context, limit, workers int) (moved int, err error) {
	ctx, span := tracer.Start(ctx, "invoice.SweepOverdue")
	defer func() { telemetry.EndSpan(span, err) }()

	due, err := s.repo.ListDueBefore(ctx, s.clock().UTC(), limit)
	if err != nil {
		return 0, err
	}
	if workers < 1 {
		workers = 1
	}

	var n atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, inv := range due {
		g.Go(func() error {
			got, err := s.Refresh(gctx, inv.ID)
			switch {
			case apperr.IsKind(err, apperr.Conflict):
				return nil
			case err != nil:
				return err
			case got.Status == domain.StatusOverdue:
				n.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return int(n.Load()), err
}

func (s *Service) mutate(ctx context.Context, id, eventType string, fn func(*domain.Invoice) error) (*domain.Invoice, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inv := current.Clone()
	if err := fn(inv); err != nil {
		return nil, err
	}
	if err := s.save(ctx, inv, false, eventType); err != nil {
		return nil, err
	}
	return inv, nil
}

// save is the only write path for invoices.
func (s *Service) save(ctx context.Context, inv *domain.Invoice, isNew bool, eventType string) error {
	if err := inv.Recompute(); err != nil {
		return err
	}
	now := s.clock().UTC()
	if inv.ApplyOverdue(now) && eventType == "invoice.refreshed" {
		eventType = "invoice.overdue"
	}

	inv.UpdatedAt = now
	if isNew {
		inv.CreatedAt = now
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
	} else if err := s.repo.Update(ctx, inv); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, inv.OrderID, events.New(eventType, inv.ID, now, inv)); err != nil {
		slog.WarnContext(ctx, "failed to publish invoice event", "invoice_id", inv.ID, "type", eventType, "error", err)
	}
	return nil
}

// ErrNoAllocator is returned when the service was built without an invoice
// number allocator and a caller relies on automatic numbering.
var ErrNoAllocator = errors.New("invoice: no number allocator configured")
