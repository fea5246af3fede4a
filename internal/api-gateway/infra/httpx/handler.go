package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clickmarket/marketplace/internal/api-gateway/infra/httpx/middlewares"
	"github.com/clickmarket/marketplace/internal/coordinator"
	"github.com/clickmarket/marketplace/internal/marketplace"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/interceptors"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// Handler exposes the marketplace operations over HTTP. Every route except
// tracking and health runs behind middlewares.Authenticate.
type Handler struct {
	svc *marketplace.Services
}

func NewHandler(svc *marketplace.Services) *Handler {
	return &Handler{svc: svc}
}

// Checkout turns a cart into a confirmed order with a pending payment.
// Clients always check out for themselves.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req coordinator.CheckoutRequest
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

	idempKey := interceptors.IdempotencyKey(r.Context())
	slog.InfoContext(r.Context(), "checkout requested", "customer_id", req.CustomerID, "idempotent", idempKey != "")

	res, err := h.svc.Coordinator.Checkout(r.Context(), req, idempKey)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// Settle runs the post-payment saga for the payment's order. It stands for
// the gateway confirming the payment, so like the other gateway callbacks
// it is admin only.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req coordinator.SettleRequest
	if !decode(w, r, &req) {
		return
	}

	// The settlement must finish even if the client goes away mid-request.
	res, err := h.svc.Coordinator.Settle(context.WithoutCancel(r.Context()), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CheckoutStatus returns the latest saga transition of an order to its
// customer.
func (h *Handler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !authorize(w, caller(r), o.CustomerID) {
		return
	}
	last, err := h.svc.Coordinator.Status(r.Context(), o.ID)
	respond(w, r, http.StatusOK, last, err)
}

// CheckoutLog returns every saga transition recorded for an order.
func (h *Handler) CheckoutLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Coordinator.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no checkout log for this order")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func caller(r *http.Request) *user.User {
	u, _ := middlewares.CurrentUser(r.Context())
	return u
}

// authorize reports whether u may act on documents of customerID, writing
// a 403 when not.
func authorize(w http.ResponseWriter, u *user.User, customerID string) bool {
	if u == nil || !u.CanSeeCustomer(customerID) {
		writeError(w, http.StatusForbidden, "forbidden", "document belongs to another customer")
		return false
	}
	return true
}

// fetch loads a document by the {id} route parameter and checks the caller
// may see it.
func fetch[T any](w http.ResponseWriter, r *http.Request, load func(context.Context, string) (T, error), owner func(T) string) (T, bool) {
	v, err := load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return v, false
	}
	if !authorize(w, caller(r), owner(v)) {
		return v, false
	}
	return v, true
}

// respond writes v, or the mapped error when err is set.
func respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// parseFilter reads the list query parameters. Clients are always scoped to
// their own documents.
func parseFilter(r *http.Request) (listing.Filter, error) {
	q := r.URL.Query()
	f := listing.Filter{
		Status:     q.Get("status"),
		CustomerID: q.Get("customer_id"),
		OrderID:    q.Get("order_id"),
		SortBy:     q.Get("sort_by"),
	}
	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return f, err
	}
	if f.From, err = timeParam("from", q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = timeParam("to", q.Get("to")); err != nil {
		return f, err
	}
	if v := q.Get("desc"); v != "" {
		if f.Desc, err = strconv.ParseBool(v); err != nil {
			return f, apperr.Newf(apperr.Validation, "desc must be a boolean, got %q", v)
		}
	}
	if u := caller(r); u != nil && !u.IsAdmin() {
		f.CustomerID = u.ID
	}
	return f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Newf(apperr.Validation, "%q is not a number", v)
	}
	return n, nil
}

func timeParam(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Newf(apperr.Validation, "%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.InvalidState, apperr.Immutable, apperr.Conflict:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.ResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Unknown {
		if errors.Is(err, context.Canceled) {
			writeError(w, 499, "canceled", "request canceled")
			return
		}
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeError(w, StatusOf(kind), strings.ToLower(kind.String()), apperr.Message(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
