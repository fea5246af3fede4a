package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickmarket/marketplace/internal/delivery-service/domain"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/money"
	"github.com/clickmarket/marketplace/internal/pkg/sequence"
	"github.com/clickmarket/marketplace/internal/store/memory"
)

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestService() (*Service, *memory.DeliveryRepository) {
	repo := memory.NewDeliveryRepository()
	clock := &stepClock{now: start}
	return NewService(repo, nil, WithClock(clock.Now)), repo
}

func params() domain.NewDeliveryParams {
	return domain.NewDeliveryParams{
		OrderID:       "order-1",
		CustomerID:    "cust-1",
		Address:       domain.Address{Street: "12 rue Carnot", City: "Dakar", Phone: "+221770000000"},
		ZoneRef:       "dakar-plateau",
		ScheduledDate: start.AddDate(0, 0, 2),
		ShippingFee:   decimal.RequireFromString("1000"),
	}
}

func TestCreateDelivery(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.CreateDelivery(context.Background(), params())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, d.Status)
	assert.True(t, strings.HasPrefix(d.TrackingNumber, sequence.TrackingPrefix), d.TrackingNumber)
	require.Len(t, d.StatusHistory, 1)
	assert.Equal(t, domain.StatusPending, d.StatusHistory[0].Status)
}

func TestCreateDeliveryValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.NewDeliveryParams)
	}{
		{"no phone", func(p *domain.NewDeliveryParams) { p.Address.Phone = "" }},
		{"no street", func(p *domain.NewDeliveryParams) { p.Address.Street = " " }},
		{"no city", func(p *domain.NewDeliveryParams) { p.Address.City = "" }},
		{"negative fee", func(p *domain.NewDeliveryParams) { p.ShippingFee = decimal.RequireFromString("-10") }},
		{"no order", func(p *domain.NewDeliveryParams) { p.OrderID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			p := params()
			tt.mutate(&p)

			_, err := svc.CreateDelivery(context.Background(), p)

			assert.True(t, apperr.IsKind(err, apperr.Validation), "got %v", err)
		})
	}
}

func TestTrackingNumberCollisionRetries(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDeliveryRepository()
	fixed := func() time.Time { return start }
	suffixes := []int{7, 7, 8}
	next := 0
	randn := func(int) int {
		v := suffixes[min(next, len(suffixes)-1)]
		next++
		return v
	}
	alloc := sequence.NewTrackingAllocator(repo).WithSource(fixed, randn)
	svc := NewService(repo, nil, WithTrackingAllocator(alloc), WithClock(fixed))

	first, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	second, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)

	assert.Equal(t, "LIV17172288000000007", first.TrackingNumber)
	assert.Equal(t, "LIV17172288000000008", second.TrackingNumber)
}

func TestTrackingNumberExhausted(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDeliveryRepository()
	fixed := func() time.Time { return start }
	alloc := sequence.NewTrackingAllocator(repo).WithSource(fixed, func(int) int { return 42 })
	svc := NewService(repo, nil, WithTrackingAllocator(alloc), WithClock(fixed))

	_, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	_, err = svc.CreateDelivery(ctx, params())

	assert.True(t, apperr.IsKind(err, apperr.ResourceExhausted), "got %v", err)
}

func TestSuppliedTrackingNumberConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	p := params()
	p.TrackingNumber = "LIV-CUSTOM-1"

	_, err := svc.CreateDelivery(ctx, p)
	require.NoError(t, err)
	_, err = svc.CreateDelivery(ctx, p)

	assert.True(t, apperr.IsKind(err, apperr.Conflict), "got %v", err)
}

func TestChangeStatusStampsOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	d, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)

	d, err = svc.ChangeStatus(ctx, d.ID, "in_transit", "left the depot")
	require.NoError(t, err)
	require.NotNil(t, d.DepartureDate)
	departed := *d.DepartureDate
	assert.Equal(t, departed.Format("15:04"), d.DepartureTime)

	d, err = svc.ChangeStatus(ctx, d.ID, "delivered", "")
	require.NoError(t, err)
	require.NotNil(t, d.ActualDeliveryDate)
	delivered := *d.ActualDeliveryDate

	d, err = svc.ChangeStatus(ctx, d.ID, "delivered", "second scan")
	require.NoError(t, err)
	d, err = svc.ChangeStatus(ctx, d.ID, "in_transit", "")
	require.NoError(t, err)

	assert.Equal(t, delivered, *d.ActualDeliveryDate)
	assert.Equal(t, departed, *d.DepartureDate)
	require.Len(t, d.StatusHistory, 5)
	assert.Equal(t, "second scan", d.StatusHistory[3].Comment)
	assert.Equal(t, domain.StatusInTransit, d.Status)
}

func TestChangeStatusRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	d, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, d.ID, "lost_at_sea", "")
	assert.True(t, apperr.IsKind(err, apperr.Validation), "got %v", err)

	stored, err := svc.GetDelivery(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, stored.StatusHistory, 1)
}

func TestAssignCourierForcesPrepared(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	d, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, d.ID, "in_transit", "")
	require.NoError(t, err)

	d, err = svc.AssignCourier(ctx, d.ID, domain.Courier{Name: "Moussa", Vehicle: "scooter"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPrepared, d.Status)
	assert.Equal(t, "Moussa", d.Courier.Name)
	assert.Len(t, d.StatusHistory, 3)
}

func TestMarkDelivered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	d, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)

	_, err = svc.MarkDelivered(ctx, d.ID, "", "")
	assert.True(t, apperr.IsKind(err, apperr.Validation), "got %v", err)

	d, err = svc.MarkDelivered(ctx, d.ID, "Awa Diop", "left with the guard")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, d.Status)
	assert.Equal(t, "Awa Diop", d.RecipientName)
	assert.Equal(t, "left with the guard", d.DeliveryComment)
	assert.NotNil(t, d.ActualDeliveryDate)
	assert.NotEmpty(t, d.ArrivalTime)

	tracked, err := svc.Track(ctx, d.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, d.ID, tracked.ID)
}

func TestVoidForOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	pending, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	moving, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, moving.ID, "in_transit", "")
	require.NoError(t, err)
	done, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	_, err = svc.MarkDelivered(ctx, done.ID, "Awa", "")
	require.NoError(t, err)

	require.NoError(t, svc.VoidForOrder(ctx, "order-1", "customer request"))

	for id, want := range map[string]domain.DeliveryStatus{
		pending.ID: domain.StatusFailed,
		moving.ID:  domain.StatusReturned,
		done.ID:    domain.StatusDelivered,
	} {
		got, err := svc.GetDelivery(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
	got, err := svc.GetDelivery(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "order cancelled: customer request", got.StatusHistory[len(got.StatusHistory)-1].Comment)
}

func TestCreateDeliveryResolvesOrder(t *testing.T) {
	ctx := context.Background()
	orders := memory.NewOrderRepository()
	o, err := order.NewOrder("order-1", "cust-2", []money.LineItem{
		{ProductRef: "mango", Quantity: 1, UnitPrice: decimal.RequireFromString("1200")},
	}, money.Adjustments{})
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, o))

	clock := &stepClock{now: start}
	svc := NewService(memory.NewDeliveryRepository(), nil, WithClock(clock.Now), WithOrders(orders))

	d, err := svc.CreateDelivery(ctx, params())
	require.NoError(t, err)
	assert.Equal(t, "cust-2", d.CustomerID)

	p := params()
	p.OrderID = "no-such-order"
	_, err = svc.CreateDelivery(ctx, p)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
