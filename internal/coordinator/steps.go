package coordinator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoiceapp "github.com/clickmarket/marketplace/internal/invoice-service/app"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	orderapp "github.com/clickmarket/marketplace/internal/order-service/app"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	paymentapp "github.com/clickmarket/marketplace/internal/payment-service/app"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/money"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// compensationReason is recorded on everything a failed saga voids.
const compensationReason = "checkout rolled back"

// --- CreateOrderStep ---

type CreateOrderStep struct {
	orders  OrderService
	request orderapp.CreateOrderInput
	order   *order.Order
}

// NewCreateOrderStep is the constructor for CreateOrderStep. request.ID
// should be set so the order and the saga share an id.
func NewCreateOrderStep(orders OrderService, request orderapp.CreateOrderInput) *CreateOrderStep {
	return &CreateOrderStep{orders: orders, request: request}
}

func (s *CreateOrderStep) Name() string { return "Create_Order_Step" }

func (s *CreateOrderStep) Execute(ctx context.Context) error {
	o, err := s.orders.CreateOrder(ctx, s.request)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	s.order = o
	return nil
}

// Compensate cancels the order, which voids whatever payment was attached.
func (s *CreateOrderStep) Compensate(ctx context.Context) error {
	_, err := s.orders.CancelOrder(ctx, s.order.ID, compensationReason)
	return err
}

func (s *CreateOrderStep) Order() *order.Order { return s.order }

// --- ConfirmOrderStep ---

type ConfirmOrderStep struct {
	orders  OrderService
	orderID string
	order   *order.Order
}

func NewConfirmOrderStep(orders OrderService, orderID string) *ConfirmOrderStep {
	return &ConfirmOrderStep{orders: orders, orderID: orderID}
}

func (s *ConfirmOrderStep) Name() string { return "Confirm_Order_Step" }

func (s *ConfirmOrderStep) Execute(ctx context.Context) error {
	o, err := s.orders.ConfirmOrder(ctx, s.orderID)
	if err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	s.order = o
	return nil
}

// Compensate does nothing: a confirmed order is rolled back by the
// cancellation of CreateOrderStep.
func (s *ConfirmOrderStep) Compensate(context.Context) error { return nil }

// --- CreatePaymentStep ---

type CreatePaymentStep struct {
	payments PaymentService
	confirm  *ConfirmOrderStep
	method   string
	phone    string
	payment  *payment.Payment
}

// NewCreatePaymentStep charges the grand total of the order confirmed by
// confirm, so the amount is read after confirmation froze it.
func NewCreatePaymentStep(payments PaymentService, confirm *ConfirmOrderStep, method, phone string) *CreatePaymentStep {
	return &CreatePaymentStep{payments: payments, confirm: confirm, method: method, phone: phone}
}

func (s *CreatePaymentStep) Name() string { return "Create_Payment_Step" }

func (s *CreatePaymentStep) Execute(ctx context.Context) error {
	o := s.confirm.order
	p, err := s.payments.CreatePayment(ctx, paymentapp.CreatePaymentInput{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Amount:      o.GrandTotal,
		Method:      s.method,
		PhoneNumber: s.phone,
	})
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	s.payment = p
	return nil
}

func (s *CreatePaymentStep) Compensate(ctx context.Context) error {
	_, err := s.payments.CancelPayment(ctx, s.payment.ID)
	return err
}

// --- ValidatePaymentStep ---

type ValidatePaymentStep struct {
	payments  PaymentService
	paymentID string
	payment   *payment.Payment
}

func NewValidatePaymentStep(payments PaymentService, paymentID string) *ValidatePaymentStep {
	return &ValidatePaymentStep{payments: payments, paymentID: paymentID}
}

func (s *ValidatePaymentStep) Name() string { return "Validate_Payment_Step" }

func (s *ValidatePaymentStep) Execute(ctx context.Context) error {
	p, err := s.payments.ValidatePayment(ctx, s.paymentID)
	if err != nil {
		return fmt.Errorf("failed to validate payment: %w", err)
	}
	s.payment = p
	return nil
}

func (s *ValidatePaymentStep) Compensate(ctx context.Context) error {
	_, err := s.payments.RefundPayment(ctx, s.paymentID)
	return err
}

// --- AdvanceOrderStep ---

type AdvanceOrderStep struct {
	orders  OrderService
	orderID string
	status  order.OrderStatus
}

func NewAdvanceOrderStep(orders OrderService, orderID string, status order.OrderStatus) *AdvanceOrderStep {
	return &AdvanceOrderStep{orders: orders, orderID: orderID, status: status}
}

func (s *AdvanceOrderStep) Name() string { return "Advance_Order_Step" }

func (s *AdvanceOrderStep) Execute(ctx context.Context) error {
	if _, err := s.orders.UpdateStatus(ctx, s.orderID, string(s.status)); err != nil {
		return fmt.Errorf("failed to move order to %s: %w", s.status, err)
	}
	return nil
}

// Compensate does nothing; orders only move forward and the coordinator
// cancels the order once the saga has failed.
func (s *AdvanceOrderStep) Compensate(context.Context) error { return nil }

// --- CreateInvoiceStep ---

type CreateInvoiceStep struct {
	invoices  InvoiceService
	users     user.Directory
	order     *order.Order
	paymentID string
	notes     string
	terms     string
	invoice   *invoice.Invoice
}

// NewCreateInvoiceStep bills o. The client block is a snapshot of the
// customer taken from users at the time the step runs.
func NewCreateInvoiceStep(invoices InvoiceService, users user.Directory, o *order.Order, paymentID, notes, terms string) *CreateInvoiceStep {
	return &CreateInvoiceStep{invoices: invoices, users: users, order: o, paymentID: paymentID, notes: notes, terms: terms}
}

func (s *CreateInvoiceStep) Name() string { return "Create_Invoice_Step" }

func (s *CreateInvoiceStep) Execute(ctx context.Context) error {
	customer, err := s.users.GetUser(ctx, s.order.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer %s: %w", s.order.CustomerID, err)
	}
	inv, err := s.invoices.CreateInvoice(ctx, invoiceapp.CreateInvoiceInput{
		Draft: invoice.Draft{
			OrderID:    s.order.ID,
			CustomerID: s.order.CustomerID,
			PaymentID:  s.paymentID,
			Client: invoice.ClientSnapshot{
				Name:      customer.Name,
				FirstName: customer.FirstName,
				Email:     customer.Email,
				Phone:     customer.Phone,
				Address:   customer.Address(),
			},
			Items:       money.CopyItems(s.order.Items),
			Adjustments: s.order.Adjustments,
			Notes:       s.notes,
			Terms:       s.terms,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	s.invoice = inv
	return nil
}

func (s *CreateInvoiceStep) Compensate(ctx context.Context) error {
	_, err := s.invoices.CancelInvoice(ctx, s.invoice.ID)
	return err
}

// --- IssueInvoiceStep ---

type IssueInvoiceStep struct {
	invoices InvoiceService
	create   *CreateInvoiceStep
	invoice  *invoice.Invoice
}

func NewIssueInvoiceStep(invoices InvoiceService, create *CreateInvoiceStep) *IssueInvoiceStep {
	return &IssueInvoiceStep{invoices: invoices, create: create}
}

func (s *IssueInvoiceStep) Name() string { return "Issue_Invoice_Step" }

func (s *IssueInvoiceStep) Execute(ctx context.Context) error {
	inv, err := s.invoices.IssueInvoice(ctx, s.create.invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to issue invoice: %w", err)
	}
	s.invoice = inv
	return nil
}

// Compensate does nothing; cancelling the invoice in CreateInvoiceStep
// covers an issued invoice too.
func (s *IssueInvoiceStep) Compensate(context.Context) error { return nil }

// --- CreateDeliveryStep ---

type CreateDeliveryStep struct {
	deliveries DeliveryService
	params     delivery.NewDeliveryParams
	delivery   *delivery.Delivery
}

func NewCreateDeliveryStep(deliveries DeliveryService, o *order.Order, req DeliveryRequest) *CreateDeliveryStep {
	fee := o.ShippingFee
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	return &CreateDeliveryStep{deliveries: deliveries, params: delivery.NewDeliveryParams{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Address:       req.Address,
		ZoneRef:       req.ZoneRef,
		ScheduledDate: req.ScheduledDate,
		ShippingFee:   fee,
		Instructions:  req.Instructions,
		CustomerNote:  req.CustomerNote,
	}}
}

func (s *CreateDeliveryStep) Name() string { return "Create_Delivery_Step" }

func (s *CreateDeliveryStep) Execute(ctx context.Context) error {
	d, err := s.deliveries.CreateDelivery(ctx, s.params)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	s.delivery = d
	return nil
}

func (s *CreateDeliveryStep) Compensate(ctx context.Context) error {
	_, err := s.deliveries.ChangeStatus(ctx, s.delivery.ID, string(delivery.StatusFailed), compensationReason)
	return err
}
