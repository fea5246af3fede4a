package sequence

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/cache"
)

var invoiceNumberRe = regexp.MustCompile(`^FAC-\d{6}-\d{4,}$`)

func TestMonthPeriod(t *testing.T) {
	start, end := MonthPeriod(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, "202402", PeriodKey(start))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "FAC-202401-0001", FormatInvoiceNumber("202401", 1))
	assert.Equal(t, "FAC-202412-0420", FormatInvoiceNumber("202412", 420))
	assert.Equal(t, "FAC-202412-12345", FormatInvoiceNumber("202412", 12345))
}

func TestInvoiceAllocatorRestartsEachMonth(t *testing.T) {
	ctx := context.Background()
	a := NewInvoiceAllocator(NewMemoryCounter())
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	n1, err := a.Next(ctx, jan)
	require.NoError(t, err)
	n2, err := a.Next(ctx, jan.Add(48*time.Hour))
	require.NoError(t, err)
	n3, err := a.Next(ctx, jan.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, "FAC-202401-0001", n1)
	assert.Equal(t, "FAC-202401-0002", n2)
	assert.Equal(t, "FAC-202402-0001", n3)
}

func TestInvoiceAllocatorConcurrentUnique(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "clickmarket")

	counters := map[string]Counter{
		"memory": NewMemoryCounter(),
		"redis":  NewCacheCounter(redisCache),
	}

	const creators = 32
	month := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	for name, counter := range counters {
		t.Run(name, func(t *testing.T) {
			a := NewInvoiceAllocator(counter)

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				numbers = make(map[string]struct{})
			)
			for i := 0; i < creators; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					n, err := a.Next(context.Background(), month)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					numbers[n] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Len(t, numbers, creators)
			for n := range numbers {
				assert.Regexp(t, invoiceNumberRe, n)
			}
		})
	}
}

type failingCounter struct{}

func (failingCounter) Next(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestInvoiceAllocatorPropagatesCounterError(t *testing.T) {
	_, err := NewInvoiceAllocator(failingCounter{}).Next(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

type fakeIndex struct {
	taken map[string]bool
	calls int
	err   error
}

func (f *fakeIndex) TrackingNumberExists(_ context.Context, n string) (bool, error) {
	f.calls++
	return f.taken[n], f.err
}

func fixedSource(millis int64, rolls ...int) (func() time.Time, func(int) int) {
	i := 0
	now := func() time.Time { return time.UnixMilli(millis) }
	randn := func(int) int {
		r := rolls[i%len(rolls)]
		i++
		return r
	}
	return now, randn
}

func TestTrackingAllocatorFormat(t *testing.T) {
	idx := &fakeIndex{}
	a := NewTrackingAllocator(idx).WithSource(fixedSource(1704067200000, 42))

	n, err := a.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LIV17040672000000042", n)
	assert.Equal(t, 1, idx.calls)
}

func TestTrackingAllocatorRetriesOnCollision(t *testing.T) {
	idx := &fakeIndex{taken: map[string]bool{
		"LIV17040672000000001": true,
		"LIV17040672000000002": true,
	}}
	a := NewTrackingAllocator(idx).WithSource(fixedSource(1704067200000, 1, 2, 3))

	n, err := a.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LIV17040672000000003", n)
	assert.Equal(t, 3, idx.calls)
}

func TestTrackingAllocatorExhausted(t *testing.T) {
	idx := &fakeIndex{taken: map[string]bool{"LIV17040672000000007": true}}
	a := NewTrackingAllocator(idx).WithSource(fixedSource(1704067200000, 7))

	_, err := a.Next(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.ResourceExhausted))
	assert.Equal(t, MaxTrackingAttempts, idx.calls)
}

func TestTrackingAllocatorIndexError(t *testing.T) {
	idx := &fakeIndex{err: errors.New("db closed")}
	_, err := NewTrackingAllocator(idx).Next(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperr.Unknown, apperr.KindOf(err))
}
