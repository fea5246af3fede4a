package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	paymentapp "github.com/clickmarket/marketplace/internal/payment-service/app"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
)

func paymentOwner(p *payment.Payment) string { return p.CustomerID }

// CreatePayment opens a new attempt against an order, for instance after a
// failed one. The customer is taken from the order. A missing amount charges
// the grand total; only admins may record a different amount.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.Orders.GetOrder(r.Context(), req.OrderID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	u := caller(r)
	if !authorize(w, u, o.CustomerID) {
		return
	}
	amount := req.Amount
	if amount.IsZero() {
		amount = o.GrandTotal
	}
	if !u.IsAdmin() && !amount.Equal(o.GrandTotal) {
		writeError(w, http.StatusBadRequest, "validation", "amount must equal the order total "+o.GrandTotal.String())
		return
	}
	p, err := h.svc.Payments.CreatePayment(r.Context(), paymentapp.CreatePaymentInput{
		OrderID:              o.ID,
		CustomerID:           o.CustomerID,
		Amount:               amount,
		Method:               req.Method,
		PhoneNumber:          req.PhoneNumber,
		TransactionReference: req.TransactionReference,
	})
	respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	if p, ok := fetch(w, r, h.svc.Payments.GetPayment, paymentOwner); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := h.svc.Payments.ListPayments(r.Context(), f)
	respond(w, r, http.StatusOK, page, err)
}

// The gateway callbacks below are admin only.

func (h *Handler) StartPaymentProcessing(w http.ResponseWriter, r *http.Request) {
	var req ProcessingRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.Payments.StartProcessing(r.Context(), chi.URLParam(r, "id"), req.TransactionReference)
	respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Payments.ValidatePayment(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	var req FailPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.Payments.FailPayment(r.Context(), chi.URLParam(r, "id"), req.Message)
	respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Payments.RefundPayment(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := fetch(w, r, h.svc.Payments.GetPayment, paymentOwner)
	if !ok {
		return
	}
	p, err := h.svc.Payments.CancelPayment(r.Context(), p.ID)
	respond(w, r, http.StatusOK, p, err)
}
