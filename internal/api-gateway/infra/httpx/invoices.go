package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	invoiceapp "github.com/clickmarket/marketplace/internal/invoice-service/app"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
)

func invoiceOwner(i *invoice.Invoice) string { return i.CustomerID }

// CreateInvoice bills an order by hand; the checkout saga does this on its
// own for settled orders. Admin only, as every invoice mutation. The
// customer is the order's.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Invoices.CreateInvoice(r.Context(), invoiceapp.CreateInvoiceInput{
		InvoiceNumber: req.InvoiceNumber,
		Draft: invoice.Draft{
			OrderID:     req.OrderID,
			PaymentID:   req.PaymentID,
			Client:      req.Client,
			Items:       req.Items,
			Adjustments: req.Adjustments,
			DueDate:     req.DueDate,
			Notes:       req.Notes,
			Terms:       req.Terms,
		},
	})
	respond(w, r, http.StatusCreated, inv, err)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if inv, ok := fetch(w, r, h.svc.Invoices.GetInvoice, invoiceOwner); ok {
		writeJSON(w, http.StatusOK, inv)
	}
}

func (h *Handler) GetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.GetInvoiceByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if authorize(w, caller(r), inv.CustomerID) {
		writeJSON(w, http.StatusOK, inv)
	}
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := h.svc.Invoices.ListInvoices(r.Context(), f)
	respond(w, r, http.StatusOK, page, err)
}

func (h *Handler) UpdateInvoiceDraft(w http.ResponseWriter, r *http.Request) {
	var req UpdateDraftRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Invoices.UpdateDraft(r.Context(), chi.URLParam(r, "id"), invoice.Draft{
		Items:       req.Items,
		Adjustments: req.Adjustments,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		Terms:       req.Terms,
	})
	respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) IssueInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.IssueInvoice(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Invoices.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.PaidDate, req.Method)
	respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) MarkInvoicePartiallyPaid(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.MarkPartiallyPaid(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.CancelInvoice(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) MarkInvoiceSent(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.MarkSent(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, inv, err)
}

// RefreshInvoice saves the invoice unchanged so the overdue rule runs now.
func (h *Handler) RefreshInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.Refresh(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, inv, err)
}
