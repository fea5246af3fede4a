package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// versioned runs write with v's version set to next, restoring the previous
// value when the write fails.
func versioned(version *int, next int, write func() error) error {
	prev := *version
	*version = next
	if err := write(); err != nil {
		*version = prev
		return err
	}
	return nil
}

type OrderRepository struct{ t docTable[*order.Order] }

func (d *DB) Orders() *OrderRepository {
	return &OrderRepository{t: docTable[*order.Order]{
		db: d.db, table: "orders", entity: "order",
		sortColumns: map[string]string{"updated_at": "updated_at", "grand_total": "sort_amount"},
	}}
}

func orderRecord(o *order.Order) record {
	return record{
		id: o.ID, version: o.Version, status: string(o.Status), customerID: o.CustomerID,
		createdAt: o.CreatedAt, updatedAt: o.UpdatedAt, doc: o,
		extra: []column{{"sort_amount", o.GrandTotal.InexactFloat64()}},
	}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return versioned(&o.Version, 1, func() error { return r.t.insert(ctx, orderRecord(o)) })
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	expected := o.Version
	return versioned(&o.Version, expected+1, func() error { return r.t.update(ctx, orderRecord(o), expected) })
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.t.get(ctx, id)
}

func (r *OrderRepository) List(ctx context.Context, f listing.Filter) ([]*order.Order, int, error) {
	return r.t.list(ctx, f)
}

type PaymentRepository struct{ t docTable[*payment.Payment] }

func (d *DB) Payments() *PaymentRepository {
	return &PaymentRepository{t: docTable[*payment.Payment]{
		db: d.db, table: "payments", entity: "payment",
		sortColumns: map[string]string{"updated_at": "updated_at", "amount": "sort_amount"},
	}}
}

func paymentRecord(p *payment.Payment) record {
	return record{
		id: p.ID, version: p.Version, status: string(p.Status), customerID: p.CustomerID, orderID: p.OrderID,
		createdAt: p.CreatedAt, updatedAt: p.UpdatedAt, doc: p,
		extra: []column{
			{"sort_amount", p.Amount.InexactFloat64()},
			{"transaction_reference", nullable(p.TransactionReference)},
		},
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return versioned(&p.Version, 1, func() error { return r.t.insert(ctx, paymentRecord(p)) })
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	expected := p.Version
	return versioned(&p.Version, expected+1, func() error { return r.t.update(ctx, paymentRecord(p), expected) })
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return r.t.get(ctx, id)
}

func (r *PaymentRepository) List(ctx context.Context, f listing.Filter) ([]*payment.Payment, int, error) {
	return r.t.list(ctx, f)
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*payment.Payment, error) {
	return r.t.query(ctx, "order_id = ?", "ORDER BY created_at, id", orderID)
}

type InvoiceRepository struct{ t docTable[*invoice.Invoice] }

func (d *DB) Invoices() *InvoiceRepository {
	return &InvoiceRepository{t: docTable[*invoice.Invoice]{
		db: d.db, table: "invoices", entity: "invoice",
		sortColumns: map[string]string{
			"updated_at":     "updated_at",
			"grand_total":    "sort_amount",
			"due_date":       "due_date",
			"invoice_number": "invoice_number",
		},
	}}
}

func invoiceRecord(i *invoice.Invoice) record {
	return record{
		id: i.ID, version: i.Version, status: string(i.Status), customerID: i.CustomerID, orderID: i.OrderID,
		createdAt: i.CreatedAt, updatedAt: i.UpdatedAt, doc: i,
		extra: []column{
			{"sort_amount", i.GrandTotal.InexactFloat64()},
			{"invoice_number", i.InvoiceNumber},
			{"due_date", formatTimePtr(i.DueDate)},
		},
	}
}

func (r *InvoiceRepository) Create(ctx context.Context, i *invoice.Invoice) error {
	return versioned(&i.Version, 1, func() error { return r.t.insert(ctx, invoiceRecord(i)) })
}

func (r *InvoiceRepository) Update(ctx context.Context, i *invoice.Invoice) error {
	expected := i.Version
	return versioned(&i.Version, expected+1, func() error { return r.t.update(ctx, invoiceRecord(i), expected) })
}

func (r *InvoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.t.get(ctx, id)
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return r.t.getWhere(ctx, number, "invoice_number = ?", number)
}

func (r *InvoiceRepository) List(ctx context.Context, f listing.Filter) ([]*invoice.Invoice, int, error) {
	return r.t.list(ctx, f)
}

func (r *InvoiceRepository) ListDueBefore(ctx context.Context, t time.Time, limit int) ([]*invoice.Invoice, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.t.query(ctx, "status = ? AND due_date IS NOT NULL AND due_date < ?",
		"ORDER BY due_date, id LIMIT ?",
		string(invoice.StatusIssued), formatTime(t), limit)
}

type DeliveryRepository struct{ t docTable[*delivery.Delivery] }

func (d *DB) Deliveries() *DeliveryRepository {
	return &DeliveryRepository{t: docTable[*delivery.Delivery]{
		db: d.db, table: "deliveries", entity: "delivery",
		sortColumns: map[string]string{"updated_at": "updated_at", "scheduled_date": "scheduled_date"},
	}}
}

func deliveryRecord(d *delivery.Delivery) record {
	return record{
		id: d.ID, version: d.Version, status: string(d.Status), customerID: d.CustomerID, orderID: d.OrderID,
		createdAt: d.CreatedAt, updatedAt: d.UpdatedAt, doc: d,
		extra: []column{
			{"tracking_number", nullable(d.TrackingNumber)},
			{"scheduled_date", formatTime(d.ScheduledDate)},
		},
	}
}

func (r *DeliveryRepository) Create(ctx context.Context, d *delivery.Delivery) error {
	return versioned(&d.Version, 1, func() error { return r.t.insert(ctx, deliveryRecord(d)) })
}

func (r *DeliveryRepository) Update(ctx context.Context, d *delivery.Delivery) error {
	expected := d.Version
	return versioned(&d.Version, expected+1, func() error { return r.t.update(ctx, deliveryRecord(d), expected) })
}

func (r *DeliveryRepository) Get(ctx context.Context, id string) (*delivery.Delivery, error) {
	return r.t.get(ctx, id)
}

func (r *DeliveryRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*delivery.Delivery, error) {
	return r.t.getWhere(ctx, trackingNumber, "tracking_number = ?", trackingNumber)
}

func (r *DeliveryRepository) List(ctx context.Context, f listing.Filter) ([]*delivery.Delivery, int, error) {
	return r.t.list(ctx, f)
}

func (r *DeliveryRepository) ListByOrder(ctx context.Context, orderID string) ([]*delivery.Delivery, error) {
	return r.t.query(ctx, "order_id = ?", "ORDER BY created_at, id", orderID)
}

func (r *DeliveryRepository) TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error) {
	return r.t.exists(ctx, "tracking_number = ?", trackingNumber)
}

// UserDirectory implements user.Directory.
type UserDirectory struct{ db *sql.DB }

func (d *DB) Users() *UserDirectory {
	return &UserDirectory{db: d.db}
}

func (u *UserDirectory) GetUser(ctx context.Context, id string) (*user.User, error) {
	var doc string
	err := u.db.QueryRowContext(ctx, "SELECT doc FROM users WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get user %s: %w", id, err)
	}
	var out user.User
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("sqlite: decode user %s: %w", id, err)
	}
	return &out, nil
}

// SaveUser inserts or replaces the user; the email stays unique.
func (u *UserDirectory) SaveUser(ctx context.Context, usr *user.User) error {
	if err := usr.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(usr)
	if err != nil {
		return fmt.Errorf("sqlite: encode user %s: %w", usr.ID, err)
	}
	const q = `
		INSERT INTO users (id, role, email, created_at, doc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET role = excluded.role, email = excluded.email, doc = excluded.doc`
	if _, err := u.db.ExecContext(ctx, q, usr.ID, string(usr.Role), usr.Email, formatTime(usr.CreatedAt), string(doc)); err != nil {
		return fmt.Errorf("sqlite: save user %s: %w", usr.ID, mapConstraint(err, "user"))
	}
	return nil
}
