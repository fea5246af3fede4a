package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickmarket/marketplace/internal/invoice-service/domain"
	order "github.com/clickmarket/marketplace/internal/order-service/domain"
	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/money"
	"github.com/clickmarket/marketplace/internal/pkg/sequence"
	"github.com/clickmarket/marketplace/internal/store/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc     *Service
	repo    *memory.InvoiceRepository
	counter *sequence.MemoryCounter
	clock   *testClock
}

func newFixture(start time.Time) fixture {
	f := fixture{
		repo:    memory.NewInvoiceRepository(),
		counter: sequence.NewMemoryCounter(),
		clock:   &testClock{now: start},
	}
	f.svc = NewService(f.repo, sequence.NewInvoiceAllocator(f.counter), nil, WithClock(f.clock.Now))
	return f
}

func draftInput() CreateInvoiceInput {
	return CreateInvoiceInput{Draft: domain.Draft{
		OrderID:    "order-1",
		CustomerID: "cust-1",
		PaymentID:  "pay-1",
		Client:     domain.ClientSnapshot{Name: "Diop", FirstName: "Awa", Email: "awa@example.com"},
		Items: []money.LineItem{
			{ProductRef: "tomato", Quantity: 2, UnitPrice: dec("2500")},
			{ProductRef: "mango", Quantity: 1, UnitPrice: dec("1200")},
		},
		Adjustments: money.Adjustments{TaxRate: dec("10"), ShippingFee: dec("1000")},
	}}
}

var jan1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestCreateInvoiceAllocatesNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)

	first, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)
	second, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)

	assert.Equal(t, "FAC-202401-0001", first.InvoiceNumber)
	assert.Equal(t, "FAC-202401-0002", second.InvoiceNumber)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.True(t, first.GrandTotal.Equal(dec("7820")), "grand total %s", first.GrandTotal)

	f.clock.Set(jan1.AddDate(0, 1, 0))
	third, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)
	assert.Equal(t, "FAC-202402-0001", third.InvoiceNumber)
}

func TestCreateInvoiceKeepsSuppliedNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	in := draftInput()
	in.InvoiceNumber = "FAC-202312-0099"

	inv, err := f.svc.CreateInvoice(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "FAC-202312-0099", inv.InvoiceNumber)

	_, err = f.svc.CreateInvoice(ctx, in)
	assert.True(t, apperr.IsKind(err, apperr.Conflict), "got %v", err)
}

func TestCreateInvoiceRetriesTakenNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	in := draftInput()
	in.InvoiceNumber = "FAC-202401-0001"
	_, err := f.svc.CreateInvoice(ctx, in)
	require.NoError(t, err)

	inv, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)

	assert.Equal(t, "FAC-202401-0002", inv.InvoiceNumber)
}

func TestConcurrentCreationsGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)

	const n = 16
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := f.svc.CreateInvoice(ctx, draftInput())
			errs[i] = err
			if err == nil {
				numbers[i] = inv.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate %s", numbers[i])
		seen[numbers[i]] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("FAC-202401-%04d", i)])
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInvoiceInput)
	}{
		{"no items", func(in *CreateInvoiceInput) { in.Items = nil }},
		{"no client name", func(in *CreateInvoiceInput) { in.Client.Name = "" }},
		{"bad client email", func(in *CreateInvoiceInput) { in.Client.Email = "nope" }},
		{"no order", func(in *CreateInvoiceInput) { in.OrderID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(jan1)
			in := draftInput()
			tt.mutate(&in)

			_, err := f.svc.CreateInvoice(context.Background(), in)

			assert.True(t, apperr.IsKind(err, apperr.Validation), "got %v", err)
		})
	}
}

func TestInvoiceOwnsItsLineItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	in := draftInput()

	inv, err := f.svc.CreateInvoice(ctx, in)
	require.NoError(t, err)
	in.Items[0].Quantity = 50
	in.Items[0].ProductName = "edited after invoicing"

	stored, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Empty(t, stored.Items[0].ProductName)
}

func TestIssueThenOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	inv, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)

	issued, err := f.svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIssued, issued.Status)
	assert.Equal(t, jan1, *issued.IssueDate)
	assert.Equal(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), *issued.DueDate)

	_, err = f.svc.IssueInvoice(ctx, inv.ID)
	assert.True(t, apperr.IsKind(err, apperr.InvalidState), "got %v", err)

	f.clock.Set(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	refreshed, err := f.svc.Refresh(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, refreshed.Status)

	paid, err := f.svc.MarkPaid(ctx, inv.ID, nil, "wave")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, "wave", paid.PaymentMethod)
}

func TestIssueKeepsChosenDueDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	in := draftInput()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	in.DueDate = &due

	inv, err := f.svc.CreateInvoice(ctx, in)
	require.NoError(t, err)
	issued, err := f.svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, due, *issued.DueDate)
}

func TestMarkPaidRecordsDateOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	inv, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, inv.ID, nil, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidState), "draft cannot be paid: %v", err)

	_, err = f.svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkPartiallyPaid(ctx, inv.ID)
	require.NoError(t, err)

	paidOn := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	first, err := f.svc.MarkPaid(ctx, inv.ID, &paidOn, "cash")
	require.NoError(t, err)
	assert.Equal(t, paidOn, *first.PaidDate)

	f.clock.Set(jan1.AddDate(0, 0, 10))
	second, err := f.svc.MarkPaid(ctx, inv.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, paidOn, *second.PaidDate)
	assert.Equal(t, "cash", second.PaymentMethod)

	_, err = f.svc.CancelInvoice(ctx, inv.ID)
	assert.True(t, apperr.IsKind(err, apperr.InvalidState), "paid cannot be cancelled: %v", err)
}

func TestMarkSentIgnoresStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	inv, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)

	sent, err := f.svc.MarkSent(ctx, inv.ID)
	require.NoError(t, err)

	assert.True(t, sent.Sent)
	assert.Equal(t, jan1, *sent.SentAt)
	assert.Equal(t, domain.StatusDraft, sent.Status)
}

func TestUpdateDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	inv, err := f.svc.CreateInvoice(ctx, draftInput())
	require.NoError(t, err)

	d := draftInput().Draft
	d.Items = []money.LineItem{{ProductRef: "onion", Quantity: 4, UnitPrice: dec("250")}}
	d.Adjustments = money.Adjustments{Discount: dec("1500")}
	d.Notes = "discount applied"

	updated, err := f.svc.UpdateDraft(ctx, inv.ID, d)
	require.NoError(t, err)
	assert.True(t, updated.GrandTotal.Equal(dec("-500")), "grand total %s", updated.GrandTotal)
	assert.Equal(t, "discount applied", updated.Notes)
	assert.Equal(t, inv.InvoiceNumber, updated.InvoiceNumber)

	_, err = f.svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(ctx, inv.ID, d)
	assert.True(t, apperr.IsKind(err, apperr.Immutable), "got %v", err)
}

func TestSweepOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(jan1)
	var ids []string
	for i := 0; i < 3; i++ {
		inv, err := f.svc.CreateInvoice(ctx, draftInput())
		require.NoError(t, err)
		ids = append(ids, inv.ID)
	}
	_, err := f.svc.IssueInvoice(ctx, ids[0])
	require.NoError(t, err)
	_, err = f.svc.IssueInvoice(ctx, ids[1])
	require.NoError(t, err)

	f.clock.Set(jan1.AddDate(0, 0, 15))
	moved, err := f.svc.SweepOverdue(ctx, 10, 2)
	require.NoError(t, err)
	assert.Zero(t, moved)

	f.clock.Set(jan1.AddDate(0, 2, 0))
	moved, err = f.svc.SweepOverdue(ctx, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	for i, want := range []domain.InvoiceStatus{domain.StatusOverdue, domain.StatusOverdue, domain.StatusDraft} {
		got, err := f.svc.GetInvoice(ctx, ids[i])
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
}

func TestInvoiceNotFound(t *testing.T) {
	f := newFixture(jan1)

	_, err := f.svc.IssueInvoice(context.Background(), "missing")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = f.svc.GetInvoiceByNumber(context.Background(), "FAC-209901-0001")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestCreateInvoiceResolvesOrder(t *testing.T) {
	ctx := context.Background()
	orders := memory.NewOrderRepository()
	in := draftInput()
	o, err := order.NewOrder("order-1", "cust-2", in.Items, in.Adjustments)
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, o))

	f := newFixture(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	f.svc = NewService(f.repo, sequence.NewInvoiceAllocator(f.counter), nil, WithClock(f.clock.Now), WithOrders(orders))

	inv, err := f.svc.CreateInvoice(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "cust-2", inv.CustomerID)

	in.OrderID = "no-such-order"
	_, err = f.svc.CreateInvoice(ctx, in)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
