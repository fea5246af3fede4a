// Package memory holds process-local repositories for every entity. They
// honour the same contract as the SQLite store (optimistic versions, sparse
// unique keys, filtering and paging) and back the unit and acceptance tests.
package memory

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
)

// row is the indexed view of a stored document.
type row struct {
	ID         string
	Version    int
	Status     string
	CustomerID string
	OrderID    string
	CreatedAt  time.Time
	// Unique maps a unique key name to its value; empty values are absent.
	Unique map[string]string
}

type table[T any] struct {
	entity     string
	mu         sync.RWMutex
	rows       map[string]T
	clone      func(T) T
	row        func(T) row
	setVersion func(T, int)
	compare    func(a, b T, sortBy string) int
}

func newTable[T any](entity string, clone func(T) T, rowOf func(T) row, setVersion func(T, int), compare func(a, b T, sortBy string) int) *table[T] {
	return &table[T]{
		entity:     entity,
		rows:       make(map[string]T),
		clone:      clone,
		row:        rowOf,
		setVersion: setVersion,
		compare:    compare,
	}
}

func (t *table[T]) create(v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.row(v)
	if _, ok := t.rows[r.ID]; ok {
		return apperr.Newf(apperr.Conflict, "%s %s already exists", t.entity, r.ID)
	}
	if err := t.checkUnique(r); err != nil {
		return err
	}
	t.setVersion(v, 1)
	t.rows[r.ID] = t.clone(v)
	return nil
}

func (t *table[T]) update(v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.row(v)
	stored, ok := t.rows[r.ID]
	if !ok {
		return apperr.Newf(apperr.NotFound, "%s %s not found", t.entity, r.ID)
	}
	if got := t.row(stored).Version; got != r.Version {
		return apperr.Newf(apperr.Conflict, "%s %s was modified concurrently (version %d, expected %d)", t.entity, r.ID, got, r.Version)
	}
	if err := t.checkUnique(r); err != nil {
		return err
	}
	t.setVersion(v, r.Version+1)
	t.rows[r.ID] = t.clone(v)
	return nil
}

// checkUnique must be called with the lock held.
func (t *table[T]) checkUnique(r row) error {
	for key, value := range r.Unique {
		if value == "" {
			continue
		}
		for id, other := range t.rows {
			if id != r.ID && t.row(other).Unique[key] == value {
				return apperr.Newf(apperr.Conflict, "%s %s %q is already used", t.entity, key, value)
			}
		}
	}
	return nil
}

func (t *table[T]) get(id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, apperr.Newf(apperr.NotFound, "%s %s not found", t.entity, id)
	}
	return t.clone(v), nil
}

func (t *table[T]) getUnique(key, value string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if value != "" {
		for _, v := range t.rows {
			if t.row(v).Unique[key] == value {
				return t.clone(v), nil
			}
		}
	}
	var zero T
	return zero, apperr.Newf(apperr.NotFound, "%s with %s %q not found", t.entity, key, value)
}

// find returns copies of the matching documents ordered by creation.
func (t *table[T]) find(match func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []T
	for _, v := range t.rows {
		if match(v) {
			out = append(out, t.clone(v))
		}
	}
	slices.SortFunc(out, func(a, b T) int { return t.compare(a, b, listing.SortCreatedAt) })
	return out
}

func (t *table[T]) list(f listing.Filter) ([]T, int) {
	all := t.find(func(v T) bool {
		r := t.row(v)
		return (f.Status == "" || r.Status == f.Status) &&
			(f.CustomerID == "" || r.CustomerID == f.CustomerID) &&
			(f.OrderID == "" || r.OrderID == f.OrderID) &&
			f.InRange(r.CreatedAt)
	})
	slices.SortStableFunc(all, func(a, b T) int {
		c := t.compare(a, b, f.SortBy)
		if f.Desc {
			return -c
		}
		return c
	})

	total := len(all)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return all[start:end], total
}

// byCreated orders by creation time then id, the tie breaker of every sort.
func byCreated(a, b row) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
