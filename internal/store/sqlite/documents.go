package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
	"github.com/clickmarket/marketplace/internal/pkg/listing"
)

type column struct {
	name  string
	value any
}

// record is one document plus the columns indexed next to it.
type record struct {
	id         string
	version    int
	status     string
	customerID string
	orderID    string
	createdAt  time.Time
	updatedAt  time.Time
	doc        any
	extra      []column
}

func (r record) columns() ([]column, error) {
	doc, err := json.Marshal(r.doc)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode %s: %w", r.id, err)
	}
	cols := []column{
		{"version", r.version},
		{"status", r.status},
		{"customer_id", r.customerID},
		{"order_id", r.orderID},
		{"created_at", formatTime(r.createdAt)},
		{"updated_at", formatTime(r.updatedAt)},
		{"doc", string(doc)},
	}
	return append(cols, r.extra...), nil
}

// docTable reads and writes documents of type T, which must be a pointer
// to a JSON encodable struct.
type docTable[T any] struct {
	db     *sql.DB
	table  string
	entity string
	// sortColumns maps the accepted sort keys to columns.
	sortColumns map[string]string
}

func (t docTable[T]) insert(ctx context.Context, r record) error {
	cols, err := r.columns()
	if err != nil {
		return err
	}
	names := []string{"id"}
	args := []any{r.id}
	for _, c := range cols {
		names = append(names, c.name)
		args = append(args, c.value)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.table, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))

	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlite: insert %s %s: %w", t.entity, r.id, mapConstraint(err, t.entity))
	}
	return nil
}

// update writes r when the stored version is still expected.
func (t docTable[T]) update(ctx context.Context, r record, expected int) error {
	cols, err := r.columns()
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		sets = append(sets, c.name+" = ?")
		args = append(args, c.value)
	}
	args = append(args, r.id, expected)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND version = ?", t.table, strings.Join(sets, ", "))

	res, err := t.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sqlite: update %s %s: %w", t.entity, r.id, mapConstraint(err, t.entity))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update %s %s: %w", t.entity, r.id, err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = t.db.QueryRowContext(ctx, "SELECT 1 FROM "+t.table+" WHERE id = ?", r.id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.NotFound, "%s %s not found", t.entity, r.id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: update %s %s: %w", t.entity, r.id, err)
	}
	return apperr.Newf(apperr.Conflict, "%s %s was modified concurrently (expected version %d)", t.entity, r.id, expected)
}

// getWhere returns the single document matching the condition.
func (t docTable[T]) getWhere(ctx context.Context, what, where string, args ...any) (T, error) {
	var zero T
	var doc string
	err := t.db.QueryRowContext(ctx, "SELECT doc FROM "+t.table+" WHERE "+where, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, apperr.Newf(apperr.NotFound, "%s %s not found", t.entity, what)
	}
	if err != nil {
		return zero, fmt.Errorf("sqlite: get %s %s: %w", t.entity, what, err)
	}
	return t.decode(doc)
}

func (t docTable[T]) get(ctx context.Context, id string) (T, error) {
	return t.getWhere(ctx, id, "id = ?", id)
}

func (t docTable[T]) exists(ctx context.Context, where string, args ...any) (bool, error) {
	var one int
	err := t.db.QueryRowContext(ctx, "SELECT 1 FROM "+t.table+" WHERE "+where+" LIMIT 1", args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup %s: %w", t.entity, err)
	}
	return true, nil
}

// query returns the documents matching where in tail order (ORDER BY,
// LIMIT clauses supplied by the caller).
func (t docTable[T]) query(ctx context.Context, where, tail string, args ...any) ([]T, error) {
	q := "SELECT doc FROM " + t.table
	if where != "" {
		q += " WHERE " + where
	}
	rows, err := t.db.QueryContext(ctx, q+" "+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", t.entity, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", t.entity, err)
		}
		v, err := t.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", t.entity, err)
	}
	return out, nil
}

// list applies a normalized filter.
func (t docTable[T]) list(ctx context.Context, f listing.Filter) ([]T, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.CustomerID != "" {
		add("customer_id = ?", f.CustomerID)
	}
	if f.OrderID != "" {
		add("order_id = ?", f.OrderID)
	}
	if !f.From.IsZero() {
		add("created_at >= ?", formatTime(f.From))
	}
	if !f.To.IsZero() {
		add("created_at < ?", formatTime(f.To))
	}
	where := strings.Join(conds, " AND ")

	countQ := "SELECT COUNT(*) FROM " + t.table
	if where != "" {
		countQ += " WHERE " + where
	}
	var total int
	if err := t.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count %s: %w", t.entity, err)
	}

	col := "created_at"
	if c, ok := t.sortColumns[f.SortBy]; ok {
		col = c
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	tail := fmt.Sprintf("ORDER BY %[1]s %[2]s, created_at %[2]s, id %[2]s LIMIT ? OFFSET ?", col, dir)

	items, err := t.query(ctx, where, tail, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (t docTable[T]) decode(doc string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return v, fmt.Errorf("sqlite: decode %s: %w", t.entity, err)
	}
	return v, nil
}
