// Package httpx is the REST adapter over the marketplace services and the
// checkout coordinator.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clickmarket/marketplace/internal/api-gateway/infra/httpx/middlewares"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)
	r.Get("/track/{number}", handler.Track)

	admin := middlewares.RequireRole(user.RoleAdmin)
	logistics := middlewares.RequireRole(user.RoleAdmin, user.RoleSupplier)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticate(handler.svc.Users))

		r.Post("/checkout", handler.Checkout)
		r.With(admin).Post("/checkout/settle", handler.Settle)
		r.Get("/checkout/{id}/status", handler.CheckoutStatus)
		r.With(admin).Get("/checkout/{id}/log", handler.CheckoutLog)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Get("/", handler.ListOrders)
			r.Get("/{id}", handler.GetOrder)
			r.Put("/{id}/items", handler.UpdateOrderItems)
			r.Post("/{id}/confirm", handler.ConfirmOrder)
			r.Post("/{id}/cancel", handler.CancelOrder)
			r.With(admin).Post("/{id}/status", handler.UpdateOrderStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", handler.CreatePayment)
			r.Get("/", handler.ListPayments)
			r.Get("/{id}", handler.GetPayment)
			r.Post("/{id}/cancel", handler.CancelPayment)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/{id}/processing", handler.StartPaymentProcessing)
				r.Post("/{id}/validate", handler.ValidatePayment)
				r.Post("/{id}/fail", handler.FailPayment)
				r.Post("/{id}/refund", handler.RefundPayment)
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", handler.ListInvoices)
			r.Get("/{id}", handler.GetInvoice)
			r.Get("/number/{number}", handler.GetInvoiceByNumber)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", handler.CreateInvoice)
				r.Put("/{id}", handler.UpdateInvoiceDraft)
				r.Post("/{id}/issue", handler.IssueInvoice)
				r.Post("/{id}/paid", handler.MarkInvoicePaid)
				r.Post("/{id}/partially-paid", handler.MarkInvoicePartiallyPaid)
				r.Post("/{id}/cancel", handler.CancelInvoice)
				r.Post("/{id}/sent", handler.MarkInvoiceSent)
				r.Post("/{id}/refresh", handler.RefreshInvoice)
			})
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", handler.ListDeliveries)
			r.Get("/{id}", handler.GetDelivery)
			r.Group(func(r chi.Router) {
				r.Use(logistics)
				r.Post("/", handler.CreateDelivery)
				r.Post("/{id}/status", handler.ChangeDeliveryStatus)
				r.Post("/{id}/courier", handler.AssignCourier)
				r.Post("/{id}/delivered", handler.MarkDelivered)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(admin).Post("/", handler.CreateUser)
			r.Get("/{id}", handler.GetUser)
		})
	})
	return r
}
