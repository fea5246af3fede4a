package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	orderapp "github.com/clickmarket/marketplace/internal/order-service/app"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
)

func orderOwner(o *order.Order) string { return o.CustomerID }

// CreateOrder stores a draft order without starting a checkout.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	u := caller(r)
	if req.CustomerID == "" && u.IsClient() {
		req.CustomerID = u.ID
	}
	if !authorize(w, u, req.CustomerID) {
		return
	}
	o, err := h.svc.Orders.CreateOrder(r.Context(), orderapp.CreateOrderInput{
		CustomerID:  req.CustomerID,
		Items:       req.Items,
		Adjustments: req.Adjustments,
	})
	respond(w, r, http.StatusCreated, o, err)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if o, ok := fetch(w, r, h.svc.Orders.GetOrder, orderOwner); ok {
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := h.svc.Orders.ListOrders(r.Context(), f)
	respond(w, r, http.StatusOK, page, err)
}

func (h *Handler) UpdateOrderItems(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemsRequest
	if !decode(w, r, &req) {
		return
	}
	o, ok := fetch(w, r, h.svc.Orders.GetOrder, orderOwner)
	if !ok {
		return
	}
	o, err := h.svc.Orders.UpdateLineItems(r.Context(), o.ID, req.Items, req.Adjustments)
	respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := fetch(w, r, h.svc.Orders.GetOrder, orderOwner)
	if !ok {
		return
	}
	o, err := h.svc.Orders.ConfirmOrder(r.Context(), o.ID)
	respond(w, r, http.StatusOK, o, err)
}

// UpdateOrderStatus moves an order forward; admin only.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if !decode(w, r, &req) {
		return
	}
	o, ok := fetch(w, r, h.svc.Orders.GetOrder, orderOwner)
	if !ok {
		return
	}
	o, err := h.svc.Orders.CancelOrder(r.Context(), o.ID, req.Reason)
	respond(w, r, http.StatusOK, o, err)
}
