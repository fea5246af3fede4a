// Package marketplace assembles the order, payment, invoice and delivery
// services and the checkout coordinator over one set of stores.
package marketplace

import (
	"time"

	"github.com/clickmarket/marketplace/internal/coordinator"
	"github.com/clickmarket/marketplace/internal/coordinator/sagalog"
	deliveryapp "github.com/clickmarket/marketplace/internal/delivery-service/app"
	delivery "github.com/clickmarket/marketplace/internal/delivery-service/domain"
	invoiceapp "github.com/clickmarket/marketplace/internal/invoice-service/app"
	invoice "github.com/clickmarket/marketplace/internal/invoice-service/domain"
	orderapp "github.com/clickmarket/marketplace/internal/order-service/app"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	paymentapp "github.com/clickmarket/marketplace/internal/payment-service/app"
	payment "github.com/clickmarket/marketplace/internal/payment-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/cache"
	"github.com/clickmarket/marketplace/internal/pkg/events"
	"github.com/clickmarket/marketplace/internal/pkg/sequence"
	"github.com/clickmarket/marketplace/internal/store/memory"
	"github.com/clickmarket/marketplace/internal/store/sqlite"
	user "github.com/clickmarket/marketplace/internal/user-service/domain"
)

// Stores groups the persistence behind every service.
type Stores struct {
	Orders     order.Repository
	Payments   payment.Repository
	Invoices   invoice.Repository
	Deliveries delivery.Repository
	Users      user.Directory
	SagaLog    sagalog.Repository
	// Counter backs invoice numbering. Wire Redis here to share it across
	// processes.
	Counter sequence.Counter
}

// MemoryStores keeps everything in process memory.
func MemoryStores() Stores {
	return Stores{
		Orders:     memory.NewOrderRepository(),
		Payments:   memory.NewPaymentRepository(),
		Invoices:   memory.NewInvoiceRepository(),
		Deliveries: memory.NewDeliveryRepository(),
		Users:      memory.NewUserDirectory(),
		SagaLog:    sagalog.NewMemoryRepository(),
		Counter:    sequence.NewMemoryCounter(),
	}
}

func SQLiteStores(db *sqlite.DB) Stores {
	return Stores{
		Orders:     db.Orders(),
		Payments:   db.Payments(),
		Invoices:   db.Invoices(),
		Deliveries: db.Deliveries(),
		Users:      db.Users(),
		SagaLog:    db.SagaLog(),
		Counter:    db.Counter(),
	}
}

type Services struct {
	Orders      *orderapp.Service
	Payments    *paymentapp.Service
	Invoices    *invoiceapp.Service
	Deliveries  *deliveryapp.Service
	Users       user.Directory
	Coordinator *coordinator.Coordinator
}

type options struct {
	clock    func() time.Time
	tracking *sequence.TrackingAllocator
}

type Option func(*options)

// WithClock makes every service read time from clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithTrackingAllocator(a *sequence.TrackingAllocator) Option {
	return func(o *options) { o.tracking = a }
}

// New wires the services. publisher and c may be nil: events are then
// dropped and checkout idempotency keys are ignored.
func New(st Stores, publisher events.Publisher, c cache.Cache, opts ...Option) *Services {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	deliveryOpts := []deliveryapp.Option{deliveryapp.WithClock(o.clock), deliveryapp.WithOrders(st.Orders)}
	if o.tracking != nil {
		deliveryOpts = append(deliveryOpts, deliveryapp.WithTrackingAllocator(o.tracking))
	}

	s := &Services{Users: st.Users}
	// The order service voids payments and deliveries, so those services
	// read orders straight from the repository.
	s.Payments = paymentapp.NewService(st.Payments, publisher,
		paymentapp.WithClock(o.clock),
		paymentapp.WithOrders(st.Orders),
	)
	s.Deliveries = deliveryapp.NewService(st.Deliveries, publisher, deliveryOpts...)
	s.Invoices = invoiceapp.NewService(st.Invoices, sequence.NewInvoiceAllocator(st.Counter), publisher,
		invoiceapp.WithClock(o.clock),
		invoiceapp.WithOrders(st.Orders),
	)
	s.Orders = orderapp.NewService(st.Orders, publisher,
		orderapp.WithClock(o.clock),
		orderapp.WithVoiders(s.Payments, s.Deliveries),
	)
	s.Coordinator = coordinator.New(s.Orders, s.Payments, s.Invoices, s.Deliveries, st.Users, st.SagaLog, c)
	return s
}
