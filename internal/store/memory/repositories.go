package memory

import (
	"context"
	"time"

	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

type OrderRepository struct{ t *table[*order.Order] }

func NewOrderRepository() *OrderRepository {
	rowOf := func(o *order.Order) row {
		return row{ID: o.ID, Version: o.Version, Status: string(o.Status), CustomerID: o.CustomerID, CreatedAt: o.CreatedAt}
	}
	return &OrderRepository{t: newTable("order",
		(*order.Order).Clone,
		rowOf,
		func(o *order.Order, v int) { o.Version = v },
		func(a, b *order.Order, sortBy string) int {
			switch sortBy {
			case "updated_at":
				if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
					return c
				}
			case "grand_total":
				if c := a.GrandTotal.Cmp(b.GrandTotal); c != 0 {
					return c
				}
			}
			return byCreated(rowOf(a), rowOf(b))
		},
	)}
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error { return r.t.create(o) }
func (r *OrderRepository) Update(_ context.Context, o *order.Order) error { return r.t.update(o) }

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	return r.t.get(id)
}

func (r *OrderRepository) List(_ context.Context, f listing.Filter) ([]*order.Order, int, error) {
	items, total := r.t.list(f)
	return items, total, nil
}

type PaymentRepository struct{ t *table[*payment.Payment] }

func NewPaymentRepository() *PaymentRepository {
	rowOf := func(p *payment.Payment) row {
		return row{
			ID: p.ID, Version: p.Version, Status: string(p.Status),
			CustomerID: p.CustomerID, OrderID: p.OrderID, CreatedAt: p.CreatedAt,
			Unique: map[string]string{"transaction_reference": p.TransactionReference},
		}
	}
	return &PaymentRepository{t: newTable("payment",
		(*payment.Payment).Clone,
		rowOf,
		func(p *payment.Payment, v int) { p.Version = v },
		func(a, b *payment.Payment, sortBy string) int {
			switch sortBy {
			case "updated_at":
				if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
					return c
				}
			case "amount":
				if c := a.Amount.Cmp(b.Amount); c != 0 {
					return c
				}
			}
			return byCreated(rowOf(a), rowOf(b))
		},
	)}
}

func (r *PaymentRepository) Create(_ context.Context, p *payment.Payment) error { return r.t.create(p) }
func (r *PaymentRepository) Update(_ context.Context, p *payment.Payment) error { return r.t.update(p) }

func (r *PaymentRepository) Get(_ context.Context, id string) (*payment.Payment, error) {
	return r.t.get(id)
}

func (r *PaymentRepository) List(_ context.Context, f listing.Filter) ([]*payment.Payment, int, error) {
	items, total := r.t.list(f)
	return items, total, nil
}

func (r *PaymentRepository) ListByOrder(_ context.Context, orderID string) ([]*payment.Payment, error) {
	return r.t.find(func(p *payment.Payment) bool { return p.OrderID == orderID }), nil
}

type InvoiceRepository struct{ t *table[*invoice.Invoice] }

func NewInvoiceRepository() *InvoiceRepository {
	rowOf := func(i *invoice.Invoice) row {
		return row{
			ID: i.ID, Version: i.Version, Status: string(i.Status),
			CustomerID: i.CustomerID, OrderID: i.OrderID, CreatedAt: i.CreatedAt,
			Unique: map[string]string{"invoice_number": i.InvoiceNumber},
		}
	}
	return &InvoiceRepository{t: newTable("invoice",
		(*invoice.Invoice).Clone,
		rowOf,
		func(i *invoice.Invoice, v int) { i.Version = v },
		func(a, b *invoice.Invoice, sortBy string) int {
			var c int
			switch sortBy {
			case "updated_at":
				c = a.UpdatedAt.Compare(b.UpdatedAt)
			case "grand_total":
				c = a.GrandTotal.Cmp(b.GrandTotal)
			case "due_date":
				c = compareTimePtr(a.DueDate, b.DueDate)
			case "invoice_number":
				switch {
				case a.InvoiceNumber < b.InvoiceNumber:
					c = -1
				case a.InvoiceNumber > b.InvoiceNumber:
					c = 1
				}
			}
			if c != 0 {
				return c
			}
			return byCreated(rowOf(a), rowOf(b))
		},
	)}
}

func (r *InvoiceRepository) Create(_ context.Context, i *invoice.Invoice) error { return r.t.create(i) }
func (r *InvoiceRepository) Update(_ context.Context, i *invoice.Invoice) error { return r.t.update(i) }

func (r *InvoiceRepository) Get(_ context.Context, id string) (*invoice.Invoice, error) {
	return r.t.get(id)
}

func (r *InvoiceRepository) GetByNumber(_ context.Context, number string) (*invoice.Invoice, error) {
	return r.t.getUnique("invoice_number", number)
}

func (r *InvoiceRepository) List(_ context.Context, f listing.Filter) ([]*invoice.Invoice, int, error) {
	items, total := r.t.list(f)
	return items, total, nil
}

func (r *InvoiceRepository) ListDueBefore(_ context.Context, t time.Time, limit int) ([]*invoice.Invoice, error) {
	due := r.t.find(func(i *invoice.Invoice) bool {
		return i.Status == invoice.StatusIssued && i.DueDate != nil && i.DueDate.Before(t)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

type DeliveryRepository struct{ t *table[*delivery.Delivery] }

func NewDeliveryRepository() *DeliveryRepository {
	rowOf := func(d *delivery.Delivery) row {
		return row{
			ID: d.ID, Version: d.Version, Status: string(d.Status),
			CustomerID: d.CustomerID, OrderID: d.OrderID, CreatedAt: d.CreatedAt,
			Unique: map[string]string{"tracking_number": d.TrackingNumber},
		}
	}
	return &DeliveryRepository{t: newTable("delivery",
		(*delivery.Delivery).Clone,
		rowOf,
		func(d *delivery.Delivery, v int) { d.Version = v },
		func(a, b *delivery.Delivery, sortBy string) int {
			var c int
			switch sortBy {
			case "updated_at":
				c = a.UpdatedAt.Compare(b.UpdatedAt)
			case "scheduled_date":
				c = a.ScheduledDate.Compare(b.ScheduledDate)
			}
			if c != 0 {
				return c
			}
			return byCreated(rowOf(a), rowOf(b))
		},
	)}
}

func (r *DeliveryRepository) Create(_ context.Context, d *delivery.Delivery) error {
	return r.t.create(d)
}

func (r *DeliveryRepository) Update(_ context.Context, d *delivery.Delivery) error {
	return r.t.update(d)
}

func (r *DeliveryRepository) Get(_ context.Context, id string) (*delivery.Delivery, error) {
	return r.t.get(id)
}

func (r *DeliveryRepository) GetByTrackingNumber(_ context.Context, trackingNumber string) (*delivery.Delivery, error) {
	return r.t.getUnique("tracking_number", trackingNumber)
}

func (r *DeliveryRepository) List(_ context.Context, f listing.Filter) ([]*delivery.Delivery, int, error) {
	items, total := r.t.list(f)
	return items, total, nil
}

func (r *DeliveryRepository) ListByOrder(_ context.Context, orderID string) ([]*delivery.Delivery, error) {
	return r.t.find(func(d *delivery.Delivery) bool { return d.OrderID == orderID }), nil
}

func (r *DeliveryRepository) TrackingNumberExists(_ context.Context, trackingNumber string) (bool, error) {
	_, err := r.t.getUnique("tracking_number", trackingNumber)
	return err == nil, nil
}

// UserDirectory is a process-local user directory. SaveUser upserts.
type UserDirectory struct{ t *table[*user.User] }

func NewUserDirectory() *UserDirectory {
	rowOf := func(u *user.User) row {
		return row{ID: u.ID, Status: string(u.Role), CreatedAt: u.CreatedAt, Unique: map[string]string{"email": u.Email}}
	}
	return &UserDirectory{t: newTable("user",
		(*user.User).Clone,
		rowOf,
		func(*user.User, int) {},
		func(a, b *user.User, _ string) int { return byCreated(rowOf(a), rowOf(b)) },
	)}
}

func (d *UserDirectory) GetUser(_ context.Context, id string) (*user.User, error) {
	return d.t.get(id)
}

func (d *UserDirectory) SaveUser(_ context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if _, err := d.t.get(u.ID); err == nil {
		return d.t.update(u)
	}
	return d.t.create(u)
}
