// Package sequence allocates the human readable identifiers of the billing
// and logistics documents: period scoped invoice numbers (FAC-YYYYMM-NNNN)
// and random delivery tracking numbers (LIV<unix millis><4 digits>).
//
// Invoice numbers come from an atomic per-period Counter, never from counting
// the invoices already stored: two concurrent creations in the same month
// always receive distinct values.
package sequence

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/cache"
)

const (
	InvoicePrefix  = "FAC"
	TrackingPrefix = "LIV"

	// MaxTrackingAttempts bounds the candidates tried before giving up.
	MaxTrackingAttempts = 5
)

// Counter hands out strictly increasing values per key, starting at 1.
type Counter interface {
	Next(ctx context.Context, key string) (int64, error)
}

// MonthPeriod returns the calendar month [start, end) containing t, in UTC.
func MonthPeriod(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// PeriodKey is the counter key of the month containing t, e.g. "202401".
func PeriodKey(t time.Time) string {
	return t.UTC().Format("200601")
}

func FormatInvoiceNumber(periodKey string, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", InvoicePrefix, periodKey, n)
}

type InvoiceAllocator struct {
	counter Counter
}

func NewInvoiceAllocator(counter Counter) *InvoiceAllocator {
	return &InvoiceAllocator{counter: counter}
}

// Next returns the next invoice number of the month containing at.
func (a *InvoiceAllocator) Next(ctx context.Context, at time.Time) (string, error) {
	key := PeriodKey(at)
	n, err := a.counter.Next(ctx, key)
	if err != nil {
		return "", fmt.Errorf("sequence: next invoice number for %s: %w", key, err)
	}
	return FormatInvoiceNumber(key, n), nil
}

// TrackingIndex answers whether a tracking number is already taken.
type TrackingIndex interface {
	TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error)
}

type TrackingAllocator struct {
	index TrackingIndex
	now   func() time.Time
	randn func(n int) int
}

func NewTrackingAllocator(index TrackingIndex) *TrackingAllocator {
	return &TrackingAllocator{index: index, now: time.Now, randn: rand.IntN}
}

// WithSource replaces the clock and random source, for tests.
func (a *TrackingAllocator) WithSource(now func() time.Time, randn func(n int) int) *TrackingAllocator {
	a.now = now
	a.randn = randn
	return a
}

// Next returns an unused tracking number, trying at most MaxTrackingAttempts
// candidates before failing with apperr.ResourceExhausted.
func (a *TrackingAllocator) Next(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= MaxTrackingAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%d%04d", TrackingPrefix, a.now().UnixMilli(), a.randn(10000))

		taken, err := a.index.TrackingNumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("sequence: check tracking number %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperr.Newf(apperr.ResourceExhausted,
		"no free tracking number after %d attempts", MaxTrackingAttempts)
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) Next(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key]++
	return c.values[key], nil
}

// CacheCounter keeps the counters in the shared cache (Redis INCR).
type CacheCounter struct {
	cache cache.Cache
}

func NewCacheCounter(c cache.Cache) *CacheCounter {
	return &CacheCounter{cache: c}
}

func (c *CacheCounter) Next(ctx context.Context, key string) (int64, error) {
	return c.cache.Incr(ctx, c.cache.GenerateKey("invoice_seq", key))
}
