package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clickmarket/marketplace/internal/coordinator/sagalog"
	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	orderapp "github.com/clickmarket/marketplace/internal/order-service/app"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/cache"
	"github.com/clickmarket/marketplace/internal/pkg/money"
	"github.com/clickmarket/marketplace/internal/pkg/telemetry"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

const (
	SagaCheckout   = "checkout"
	SagaSettlement = "settlement"

	// IdempotencyTTL is how long a checkout idempotency key keeps pointing
	// at its order.
	IdempotencyTTL = 24 * time.Hour
)

var tracer = telemetry.Tracer("coordinator")

type CheckoutRequest struct {
	CustomerID    string            `json:"customer_id"`
	Items         []money.LineItem  `json:"items"`
	Adjustments   money.Adjustments `json:"adjustments"`
	PaymentMethod string            `json:"payment_method"`
	PhoneNumber   string            `json:"phone_number,omitempty"`
}

type CheckoutResult struct {
	Order   *order.Order     `json:"order"`
	Payment *payment.Payment `json:"payment,omitempty"`
	// Replayed is true when the idempotency key matched an earlier checkout.
	Replayed bool `json:"replayed"`
}

type DeliveryRequest struct {
	Address       delivery.Address `json:"address"`
	ZoneRef       string           `json:"zone_ref"`
	ScheduledDate time.Time        `json:"scheduled_date"`
	Instructions  string           `json:"instructions,omitempty"`
	CustomerNote  string           `json:"customer_note,omitempty"`
}

type SettleRequest struct {
	PaymentID string          `json:"payment_id"`
	Delivery  DeliveryRequest `json:"delivery"`
	Notes     string          `json:"notes,omitempty"`
	Terms     string          `json:"terms,omitempty"`
}

type SettleResult struct {
	Order    *order.Order       `json:"order"`
	Payment  *payment.Payment   `json:"payment"`
	Invoice  *invoice.Invoice   `json:"invoice"`
	Delivery *delivery.Delivery `json:"delivery"`
}

// Coordinator runs the checkout workflow: Checkout takes a cart to a
// confirmed order with a pending payment, Settle takes a paid order to an
// issued invoice and a scheduled delivery.
type Coordinator struct {
	orders     OrderService
	payments   PaymentService
	invoices   InvoiceService
	deliveries DeliveryService
	users      user.Directory
	log        sagalog.Repository // nil-safe: logging skipped if nil
	cache      cache.Cache        // nil disables idempotency keys
}

func New(
	orders OrderService,
	payments PaymentService,
	invoices InvoiceService,
	deliveries DeliveryService,
	users user.Directory,
	log sagalog.Repository,
	c cache.Cache,
) *Coordinator {
	return &Coordinator{
		orders:     orders,
		payments:   payments,
		invoices:   invoices,
		deliveries: deliveries,
		users:      users,
		log:        log,
		cache:      c,
	}
}

// Checkout creates and confirms an order and opens a pending payment for
// its grand total. With a non-empty idempotencyKey a repeated call by the
// same customer returns the order of the first one; keys of different
// customers never collide.
func (c *Coordinator) Checkout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (res *CheckoutResult, err error) {
	ctx, span := tracer.Start(ctx, "coordinator.Checkout")
	defer func() { telemetry.EndSpan(span, err) }()

	orderID := uuid.NewString()
	if idempotencyKey != "" && c.cache != nil {
		key := c.cache.GenerateKey("checkout", req.CustomerID+":"+idempotencyKey)
		acquired, err := c.cache.SetNX(ctx, key, orderID, IdempotencyTTL)
		if err != nil {
			return nil, apperr.Wrap(apperr.ResourceExhausted, err, "idempotency store unavailable")
		}
		if !acquired {
			prev, err := c.cache.Get(ctx, key)
			if err != nil {
				return nil, apperr.Wrap(apperr.ResourceExhausted, err, "idempotency store unavailable")
			}
			if prev != "" {
				replay, err := c.replay(ctx, prev, req.CustomerID)
				if err == nil || !apperr.IsKind(err, apperr.NotFound) {
					return replay, err
				}
				// The first attempt never persisted its order; run again under
				// the same id.
				orderID = prev
			}
		}
	}

	create := NewCreateOrderStep(c.orders, orderapp.CreateOrderInput{
		ID:          orderID,
		CustomerID:  req.CustomerID,
		Items:       req.Items,
		Adjustments: req.Adjustments,
	})
	confirm := NewConfirmOrderStep(c.orders, orderID)
	pay := NewCreatePaymentStep(c.payments, confirm, req.PaymentMethod, req.PhoneNumber)

	saga := NewOrchestrator(SagaCheckout, orderID, []Step{create, confirm, pay}, c.log)
	if err := saga.Start(ctx, payload(req)); err != nil {
		return nil, err
	}
	return &CheckoutResult{Order: confirm.order, Payment: pay.payment}, nil
}

func (c *Coordinator) replay(ctx context.Context, orderID, customerID string) (*CheckoutResult, error) {
	o, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, apperr.New(apperr.Conflict, "idempotency key already used for another customer")
	}
	res := &CheckoutResult{Order: o, Replayed: true}
	payments, err := c.payments.PaymentsForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if n := len(payments); n > 0 {
		res.Payment = payments[n-1]
	}
	slog.InfoContext(ctx, "checkout replayed", "order_id", orderID)
	return res, nil
}

// Settle runs once the customer has paid: it validates the payment, moves
// the order to processing, issues the invoice and schedules the delivery.
// On failure the completed steps are compensated and the order cancelled.
func (c *Coordinator) Settle(ctx context.Context, req SettleRequest) (res *SettleResult, err error) {
	ctx, span := tracer.Start(ctx, "coordinator.Settle")
	defer func() { telemetry.EndSpan(span, err) }()

	p, err := c.payments.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != payment.StatusPending && p.Status != payment.StatusProcessing {
		return nil, apperr.Newf(apperr.InvalidState, "payment %s is %s, only pending or processing payments settle", p.ID, p.Status)
	}
	o, err := c.orders.GetOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusConfirmed {
		return nil, apperr.Newf(apperr.InvalidState, "order %s is %s, only confirmed orders settle", o.ID, o.Status)
	}

	validate := NewValidatePaymentStep(c.payments, p.ID)
	advance := NewAdvanceOrderStep(c.orders, o.ID, order.StatusProcessing)
	bill := NewCreateInvoiceStep(c.invoices, c.users, o, p.ID, req.Notes, req.Terms)
	issue := NewIssueInvoiceStep(c.invoices, bill)
	ship := NewCreateDeliveryStep(c.deliveries, o, req.Delivery)

	saga := NewOrchestrator(SagaSettlement, o.ID, []Step{validate, advance, bill, issue, ship}, c.log)
	if err := saga.Start(ctx, payload(req)); err != nil {
		// Detach so a cancelled request still gets its order cancelled.
		cctx := context.WithoutCancel(ctx)
		slog.ErrorContext(cctx, "settlement failed, cancelling order", "order_id", o.ID, "error", err)
		if _, cancelErr := c.orders.CancelOrder(cctx, o.ID, "settlement failed"); cancelErr != nil {
			slog.ErrorContext(cctx, "CRITICAL: failed to cancel order after settlement failure",
				"order_id", o.ID,
				"saga_error", err,
				"cancel_error", cancelErr,
			)
		}
		return nil, err
	}

	o, err = c.orders.GetOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &SettleResult{Order: o, Payment: validate.payment, Invoice: issue.invoice, Delivery: ship.delivery}, nil
}

// Status returns the latest checkout log entry of an order.
func (c *Coordinator) Status(ctx context.Context, orderID string) (*sagalog.SagaLog, error) {
	if c.log == nil {
		return nil, apperr.Newf(apperr.NotFound, "no checkout log for %s", orderID)
	}
	return sagalog.Latest(ctx, c.log, orderID)
}

// History returns the checkout log of an order, oldest entry first.
func (c *Coordinator) History(ctx context.Context, orderID string) ([]*sagalog.SagaLog, error) {
	if c.log == nil {
		return nil, nil
	}
	return c.log.History(ctx, orderID)
}

func payload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
