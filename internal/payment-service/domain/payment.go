package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
)

type Method string

const (
	MethodCard         Method = "card"
	MethodMobileMoney  Method = "mobile_money"
	MethodOrangeMoney  Method = "orange_money"
	MethodWave         Method = "wave"
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodCard, MethodMobileMoney, MethodOrangeMoney, MethodWave, MethodCash, MethodBankTransfer:
		return m, nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown payment method %q", s)
}

// RequiresPhone reports whether the method is a mobile wallet, which needs
// the payer's phone number.
func (m Method) RequiresPhone() bool {
	return m == MethodMobileMoney || m == MethodOrangeMoney || m == MethodWave
}

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusSucceeded  PaymentStatus = "succeeded"
	StatusFailed     PaymentStatus = "failed"
	StatusRefunded   PaymentStatus = "refunded"
	StatusCancelled  PaymentStatus = "cancelled"
)

func ParseStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case StatusPending, StatusProcessing, StatusSucceeded, StatusFailed, StatusRefunded, StatusCancelled:
		return st, nil
	}
	return "", apperr.Newf(apperr.Validation, "unknown payment status %q", s)
}

// Payment is one payment attempt against an order.
type Payment struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     Method          `json:"method"`
	Status     PaymentStatus   `json:"status"`

	// TransactionReference is the gateway reference; unique when present.
	TransactionReference string `json:"transaction_reference,omitempty"`
	PhoneNumber          string `json:"phone_number,omitempty"`
	ErrorMessage         string `json:"error_message,omitempty"`

	// PaidAt is set the first time the payment succeeds and never moves.
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPayment(id, orderID, customerID string, amount decimal.Decimal, method, phone, reference string) (*Payment, error) {
	if orderID == "" {
		return nil, apperr.New(apperr.Validation, "order id is required")
	}
	if customerID == "" {
		return nil, apperr.New(apperr.Validation, "customer id is required")
	}
	if amount.IsNegative() {
		return nil, apperr.Newf(apperr.Validation, "amount must not be negative, got %s", amount)
	}
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	phone = strings.TrimSpace(phone)
	if m.RequiresPhone() && phone == "" {
		return nil, apperr.Newf(apperr.Validation, "phone number is required for %s payments", m)
	}

	return &Payment{
		ID:                   id,
		OrderID:              orderID,
		CustomerID:           customerID,
		Amount:               amount,
		Method:               m,
		Status:               StatusPending,
		PhoneNumber:          phone,
		TransactionReference: strings.TrimSpace(reference),
	}, nil
}

// StartProcessing marks a pending payment as handed to the gateway.
func (p *Payment) StartProcessing(reference string) error {
	if p.Status != StatusPending {
		return p.invalid("start processing")
	}
	p.Status = StatusProcessing
	if ref := strings.TrimSpace(reference); ref != "" {
		p.TransactionReference = ref
	}
	return nil
}

// Validate marks the payment succeeded. Validating an already succeeded
// payment refreshes ValidatedAt and keeps PaidAt.
func (p *Payment) Validate(now time.Time) error {
	switch p.Status {
	case StatusPending, StatusProcessing, StatusSucceeded:
	default:
		return p.invalid("validate")
	}
	p.Status = StatusSucceeded
	if p.PaidAt == nil {
		paid := now
		p.PaidAt = &paid
	}
	p.ValidatedAt = &now
	p.ErrorMessage = ""
	return nil
}

func (p *Payment) Fail(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return apperr.New(apperr.Validation, "a failure message is required")
	}
	switch p.Status {
	case StatusPending, StatusProcessing, StatusFailed:
	default:
		return p.invalid("fail")
	}
	p.Status = StatusFailed
	p.ErrorMessage = message
	return nil
}

func (p *Payment) Refund(now time.Time) error {
	if p.Status != StatusSucceeded {
		return p.invalid("refund")
	}
	p.Status = StatusRefunded
	p.RefundedAt = &now
	return nil
}

// Cancel is allowed from every status except succeeded and refunded; a
// settled payment is reversed with Refund instead.
func (p *Payment) Cancel(now time.Time) error {
	switch p.Status {
	case StatusSucceeded, StatusRefunded:
		return p.invalid("cancel")
	case StatusCancelled:
		return nil
	}
	p.Status = StatusCancelled
	p.CancelledAt = &now
	return nil
}

func (p *Payment) invalid(op string) error {
	return apperr.Newf(apperr.InvalidState, "cannot %s payment %s in status %s", op, p.ID, p.Status)
}

func (p *Payment) Clone() *Payment {
	c := *p
	c.PaidAt = cloneTime(p.PaidAt)
	c.ValidatedAt = cloneTime(p.ValidatedAt)
	c.RefundedAt = cloneTime(p.RefundedAt)
	c.CancelledAt = cloneTime(p.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var SortableFields = []string{"updated_at", "amount"}

// Repository persists payments. Create and Update fail with apperr.Conflict
// when the transaction reference is already used by another payment.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	List(ctx context.Context, f listing.Filter) ([]*Payment, int, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Payment, error)
}
