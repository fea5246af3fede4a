package httpx

import (
	"time"

	"github.com/shopspring/decimal"

	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/money"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// Monetary amounts travel as JSON strings ("7820.5") or numbers; both decode
// into decimal.Decimal. Responses always use strings.

type CreateOrderRequest struct {
	CustomerID  string            `json:"customer_id"`
	Items       []money.LineItem  `json:"items"`
	Adjustments money.Adjustments `json:"adjustments"`
}

type UpdateItemsRequest struct {
	Items       []money.LineItem  `json:"items"`
	Adjustments money.Adjustments `json:"adjustments"`
}

type StatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CreatePaymentRequest struct {
	OrderID              string          `json:"order_id"`
	Amount               decimal.Decimal `json:"amount"`
	Method               string          `json:"method"`
	PhoneNumber          string          `json:"phone_number,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
}

type ProcessingRequest struct {
	TransactionReference string `json:"transaction_reference,omitempty"`
}

type FailPaymentRequest struct {
	Message string `json:"message"`
}

type CreateInvoiceRequest struct {
	InvoiceNumber string                 `json:"invoice_number,omitempty"`
	OrderID       string                 `json:"order_id"`
	PaymentID     string                 `json:"payment_id,omitempty"`
	Client        invoice.ClientSnapshot `json:"client"`
	Items         []money.LineItem       `json:"items"`
	Adjustments   money.Adjustments      `json:"adjustments"`
	DueDate       *time.Time             `json:"due_date,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	Terms         string                 `json:"terms,omitempty"`
}

type UpdateDraftRequest struct {
	Items       []money.LineItem  `json:"items"`
	Adjustments money.Adjustments `json:"adjustments"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Terms       string            `json:"terms,omitempty"`
}

type MarkPaidRequest struct {
	PaidDate *time.Time `json:"paid_date,omitempty"`
	Method   string     `json:"method,omitempty"`
}

type CreateDeliveryRequest struct {
	OrderID        string           `json:"order_id"`
	Address        delivery.Address `json:"address"`
	ZoneRef        string           `json:"zone_ref"`
	ScheduledDate  time.Time        `json:"scheduled_date"`
	ShippingFee    decimal.Decimal  `json:"shipping_fee"`
	TrackingNumber string           `json:"tracking_number,omitempty"`
	Instructions   string           `json:"instructions,omitempty"`
	CustomerNote   string           `json:"customer_note,omitempty"`
}

type DeliveredRequest struct {
	RecipientName string `json:"recipient_name"`
	Comment       string `json:"comment,omitempty"`
}

type CreateUserRequest struct {
	ID        string                `json:"id,omitempty"`
	Role      string                `json:"role"`
	Name      string                `json:"name"`
	FirstName string                `json:"first_name,omitempty"`
	Email     string                `json:"email"`
	Phone     string                `json:"phone,omitempty"`
	Client    *user.ClientProfile   `json:"client,omitempty"`
	Supplier  *user.SupplierProfile `json:"supplier,omitempty"`
	Admin     *user.AdminProfile    `json:"admin,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
