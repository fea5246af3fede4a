package coordinator

import (
	"context"

	deliveryapp "github.com/clickmarket/marketplace/internal/delivery-service/app"
	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoiceapp "github.com/clickmarket/marketplace/internal/invoice-service/app"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	orderapp "github.com/clickmarket/marketplace/internal/order-service/app"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	paymentapp "github.com/clickmarket/marketplace/internal/payment-service/app"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
)

// OrderService is the part of the order service the sagas drive.
type OrderService interface {
	CreateOrder(ctx context.Context, in orderapp.CreateOrderInput) (*order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ConfirmOrder(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*order.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*order.Order, error)
}

type PaymentService interface {
	CreatePayment(ctx context.Context, in paymentapp.CreatePaymentInput) (*payment.Payment, error)
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	PaymentsForOrder(ctx context.Context, orderID string) ([]*payment.Payment, error)
	ValidatePayment(ctx context.Context, id string) (*payment.Payment, error)
	RefundPayment(ctx context.Context, id string) (*payment.Payment, error)
	CancelPayment(ctx context.Context, id string) (*payment.Payment, error)
}

type InvoiceService interface {
	CreateInvoice(ctx context.Context, in invoiceapp.CreateInvoiceInput) (*invoice.Invoice, error)
	IssueInvoice(ctx context.Context, id string) (*invoice.Invoice, error)
	CancelInvoice(ctx context.Context, id string) (*invoice.Invoice, error)
}

type DeliveryService interface {
	CreateDelivery(ctx context.Context, p delivery.NewDeliveryParams) (*delivery.Delivery, error)
	ChangeStatus(ctx context.Context, id, status, comment string) (*delivery.Delivery, error)
}

var (
	_ OrderService    = (*orderapp.Service)(nil)
	_ PaymentService  = (*paymentapp.Service)(nil)
	_ InvoiceService  = (*invoiceapp.Service)(nil)
	_ DeliveryService = (*deliveryapp.Service)(nil)
)
