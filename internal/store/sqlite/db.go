// Package sqlite stores every entity in one SQLite database.
//
// Each entity table keeps the whole document as JSON next to the columns
// the read paths filter, sort and enforce uniqueness on. The sparse unique
// keys (invoice number, tracking number, transaction reference) are nullable
// UNIQUE columns, so absent values never collide.
//
// WAL mode is enabled on Open so that readers never block the writer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id           TEXT PRIMARY KEY,
    version      INTEGER NOT NULL,
    status       TEXT NOT NULL,
    customer_id  TEXT NOT NULL,
    order_id     TEXT NOT NULL DEFAULT '',
    sort_amount  REAL NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
    doc          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at);

CREATE TABLE IF NOT EXISTS payments (
    id                    TEXT PRIMARY KEY,
    version               INTEGER NOT NULL,
    status                TEXT NOT NULL,
    customer_id           TEXT NOT NULL,
    order_id              TEXT NOT NULL,
    sort_amount           REAL NOT NULL DEFAULT 0,
    transaction_reference TEXT UNIQUE,
    created_at            TEXT NOT NULL,
    updated_at            TEXT NOT NULL,
    doc                   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id, created_at);

CREATE TABLE IF NOT EXISTS invoices (
    id             TEXT PRIMARY KEY,
    version        INTEGER NOT NULL,
    status         TEXT NOT NULL,
    customer_id    TEXT NOT NULL,
    order_id       TEXT NOT NULL,
    sort_amount    REAL NOT NULL DEFAULT 0,
    invoice_number TEXT NOT NULL UNIQUE,
    due_date       TEXT,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL,
    doc            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_due ON invoices(status, due_date);

CREATE TABLE IF NOT EXISTS deliveries (
    id              TEXT PRIMARY KEY,
    version         INTEGER NOT NULL,
    status          TEXT NOT NULL,
    customer_id     TEXT NOT NULL,
    order_id        TEXT NOT NULL,
    tracking_number TEXT UNIQUE,
    scheduled_date  TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    doc             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_order ON deliveries(order_id, created_at);

CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    email      TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    doc        TEXT NOT NULL
);

-- One row per counter key, e.g. the invoice period "202401".
CREATE TABLE IF NOT EXISTS sequence_counters (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

-- Append-only: one row per checkout saga transition.
CREATE TABLE IF NOT EXISTS saga_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id         TEXT NOT NULL,
    saga            TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    current_step    TEXT NOT NULL DEFAULT '',
    payload         TEXT,
    error_messages  TEXT NOT NULL DEFAULT '[]',
    trace_id        TEXT NOT NULL DEFAULT '',
    span_id         TEXT NOT NULL DEFAULT '',
    updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_saga_logs_trace_id ON saga_logs(trace_id);
`

// DB is an open ClickMarket database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
//
//	db, err := sqlite.Open("./data/clickmarket.db")
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// One connection serialises writers; the optimistic version checks and
	// the counter upsert rely on it.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Migrate applies the schema. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

// nullable maps an empty string to NULL, which UNIQUE columns ignore.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mapConstraint turns a unique or primary key violation into apperr.Conflict.
func mapConstraint(err error, entity string) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperr.Wrap(apperr.Conflict, err, entity+" violates a uniqueness constraint")
		}
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperr.Wrap(apperr.Conflict, err, entity+" violates a uniqueness constraint")
	}
	return err
}
