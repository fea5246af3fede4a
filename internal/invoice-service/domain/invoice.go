package domain

import (
	"context"
	"strings"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	"github.com/clickmarket/marketplace/internal/pkg/money"
)

type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusIssued        InvoiceStatus = "issued"
	StatusPaid          InvoiceStatus = "paid"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusOverdue       InvoiceStatus = "overdue"
	StatusCancelled     InvoiceStatus = "cancelled"
)

// PaymentTermDays is the default gap between issue date and due date.
const PaymentTermDays = 30

func ParseStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(s); st {
	case StatusDraft, StatusIssued, StatusPaid, StatusPartiallyPaid, StatusOverdue, StatusCancelled:
		return st, nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown invoice status %q", s)
}

// ClientSnapshot is a copy of the customer's contact details taken when the
// invoice is created. Later profile edits do not reach it.
type ClientSnapshot struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

func (c ClientSnapshot) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.New(apperr.Validation, "client name is required")
	}
	if !strings.Contains(c.Email, "@") {
		return apperr.Newf(apperr.Validation, "client email %q is not valid", c.Email)
	}
	return nil
}

type Invoice struct {
	ID            string           `json:"id"`
	InvoiceNumber string           `json:"invoice_number"`
	OrderID       string           `json:"order_id"`
	CustomerID    string           `json:"customer_id"`
	PaymentID     string           `json:"payment_id,omitempty"`
	Client        ClientSnapshot   `json:"client"`
	Items         []money.LineItem `json:"items"`
	money.Adjustments
	money.Totals
	Status        InvoiceStatus `json:"status"`
	IssueDate     *time.Time    `json:"issue_date,omitempty"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	PaidDate      *time.Time    `json:"paid_date,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Terms         string        `json:"terms,omitempty"`
	PDFFileRef    string        `json:"pdf_file_ref,omitempty"`
	Sent          bool          `json:"sent"`
	SentAt        *time.Time    `json:"sent_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	Version       int           `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Draft holds the fields a caller chooses when creating or editing a draft.
type Draft struct {
	OrderID     string
	CustomerID  string
	PaymentID   string
	Client      ClientSnapshot
	Items       []money.LineItem
	Adjustments money.Adjustments
	DueDate     *time.Time
	Notes       string
	Terms       string
}

// NewInvoice builds a draft invoice. number may be empty; the service
// allocates one before the first save.
func NewInvoice(id, number string, d Draft) (*Invoice, error) {
	if d.OrderID == "" {
		return nil, apperr.New(apperr.Validation, "order id is required")
	}
	if d.CustomerID == "" {
		return nil, apperr.New(apperr.Validation, "customer id is required")
	}
	if err := d.Client.Validate(); err != nil {
		return nil, err
	}
	if err := money.ValidateItems(d.Items); err != nil {
		return nil, err
	}

	inv := &Invoice{
		ID:            id,
		InvoiceNumber: strings.TrimSpace(number),
		OrderID:       d.OrderID,
		CustomerID:    d.CustomerID,
		PaymentID:     d.PaymentID,
		Client:        d.Client,
		Items:         money.CopyItems(d.Items),
		Adjustments:   d.Adjustments,
		Status:        StatusDraft,
		DueDate:       utcPtr(d.DueDate),
		Notes:         d.Notes,
		Terms:         d.Terms,
	}
	if err := inv.Recompute(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (i *Invoice) Recompute() error {
	items, totals, err := money.ComputeTotals(i.Items, i.Adjustments)
	if err != nil {
		return err
	}
	i.Items = items
	i.Totals = totals
	return nil
}

// ApplyOverdue moves an issued invoice past its due date to overdue and
// reports whether it did.
func (i *Invoice) ApplyOverdue(now time.Time) bool {
	if i.Status != StatusIssued || i.DueDate == nil || !now.After(*i.DueDate) {
		return false
	}
	i.Status = StatusOverdue
	return true
}

// Issue sets the issue date to now and, when no due date was chosen, the due
// date to PaymentTermDays later.
func (i *Invoice) Issue(now time.Time) error {
	if i.Status != StatusDraft {
		return i.invalid("issue")
	}
	now = now.UTC()
	i.Status = StatusIssued
	i.IssueDate = &now
	if i.DueDate == nil {
		due := now.AddDate(0, 0, PaymentTermDays)
		i.DueDate = &due
	}
	return nil
}

// MarkPaid settles the invoice. The paid date is recorded once: paying an
// already paid invoice again keeps the original date.
func (i *Invoice) MarkPaid(paidDate *time.Time, method string, now time.Time) error {
	switch i.Status {
	case StatusIssued, StatusOverdue, StatusPartiallyPaid, StatusPaid:
	default:
		return i.invalid("mark paid")
	}
	i.Status = StatusPaid
	if i.PaidDate == nil {
		if paidDate != nil {
			i.PaidDate = utcPtr(paidDate)
		} else {
			at := now.UTC()
			i.PaidDate = &at
		}
	}
	if method = strings.TrimSpace(method); method != "" {
		i.PaymentMethod = method
	}
	return nil
}

func (i *Invoice) MarkPartiallyPaid() error {
	if i.Status != StatusIssued && i.Status != StatusOverdue {
		return i.invalid("mark partially paid")
	}
	i.Status = StatusPartiallyPaid
	return nil
}

func (i *Invoice) Cancel(now time.Time) error {
	if i.Status == StatusPaid || i.Status == StatusCancelled {
		return i.invalid("cancel")
	}
	now = now.UTC()
	i.Status = StatusCancelled
	i.CancelledAt = &now
	return nil
}

// MarkSent records that the invoice was sent to the client. It is allowed
// in every status; gating on billing state is the caller's decision.
func (i *Invoice) MarkSent(now time.Time) {
	now = now.UTC()
	i.Sent = true
	i.SentAt = &now
}

// UpdateDraft replaces the editable content of a draft invoice.
func (i *Invoice) UpdateDraft(d Draft) error {
	if i.Status != StatusDraft {
		return apperr.Newf(apperr.Immutable, "invoice %s is %s, its content can no longer change", i.InvoiceNumber, i.Status)
	}
	if err := money.ValidateItems(d.Items); err != nil {
		return err
	}
	i.Items = money.CopyItems(d.Items)
	i.Adjustments = d.Adjustments
	i.DueDate = utcPtr(d.DueDate)
	i.Notes = d.Notes
	i.Terms = d.Terms
	return nil
}

func (i *Invoice) invalid(op string) error {
	return apperr.Newf(apperr.InvalidState, "cannot %s invoice %s in status %s", op, i.InvoiceNumber, i.Status)
}

func (i *Invoice) Clone() *Invoice {
	c := *i
	c.Items = money.CopyItems(i.Items)
	c.IssueDate = clonePtr(i.IssueDate)
	c.DueDate = clonePtr(i.DueDate)
	c.PaidDate = clonePtr(i.PaidDate)
	c.SentAt = clonePtr(i.SentAt)
	c.CancelledAt = clonePtr(i.CancelledAt)
	return &c
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var SortableFields = []string{"updated_at", "grand_total", "due_date", "invoice_number"}

// Repository persists invoices. Create fails with apperr.Conflict when the
// invoice number is taken.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, f listing.Filter) ([]*Invoice, int, error)
	// ListDueBefore returns issued invoices whose due date is before t.
	ListDueBefore(ctx context.Context, t time.Time, limit int) ([]*Invoice, error)
}
