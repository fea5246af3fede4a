package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
)

func deliveryOwner(d *delivery.Delivery) string { return d.CustomerID }

// CreateDelivery ships an existing order to its customer.
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Deliveries.CreateDelivery(r.Context(), delivery.NewDeliveryParams{
		OrderID:        req.OrderID,
		Address:        req.Address,
		ZoneRef:        req.ZoneRef,
		ScheduledDate:  req.ScheduledDate,
		ShippingFee:    req.ShippingFee,
		TrackingNumber: req.TrackingNumber,
		Instructions:   req.Instructions,
		CustomerNote:   req.CustomerNote,
	})
	respond(w, r, http.StatusCreated, d, err)
}

func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if caller(r).IsSupplier() {
		d, err := h.svc.Deliveries.GetDelivery(r.Context(), chi.URLParam(r, "id"))
		respond(w, r, http.StatusOK, d, err)
		return
	}
	if d, ok := fetch(w, r, h.svc.Deliveries.GetDelivery, deliveryOwner); ok {
		writeJSON(w, http.StatusOK, d)
	}
}

// Track is public: the tracking number is what the customer is handed.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Deliveries.Track(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TrackingNumber string                  `json:"tracking_number"`
		Status         delivery.DeliveryStatus `json:"status"`
		ScheduledDate  string                  `json:"scheduled_date"`
		History        []delivery.StatusChange `json:"status_history"`
	}{d.TrackingNumber, d.Status, d.ScheduledDate.Format("2006-01-02"), d.StatusHistory})
}

// ListDeliveries scopes clients to their own deliveries; suppliers and
// admins run the logistics and see all of them.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if u := caller(r); u.IsSupplier() {
		f.CustomerID = r.URL.Query().Get("customer_id")
	}
	page, err := h.svc.Deliveries.ListDeliveries(r.Context(), f)
	respond(w, r, http.StatusOK, page, err)
}

func (h *Handler) ChangeDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Deliveries.ChangeStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Comment)
	respond(w, r, http.StatusOK, d, err)
}

func (h *Handler) AssignCourier(w http.ResponseWriter, r *http.Request) {
	var req delivery.Courier
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Deliveries.AssignCourier(r.Context(), chi.URLParam(r, "id"), req)
	respond(w, r, http.StatusOK, d, err)
}

func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	var req DeliveredRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Deliveries.MarkDelivered(r.Context(), chi.URLParam(r, "id"), req.RecipientName, req.Comment)
	respond(w, r, http.StatusOK, d, err)
}
