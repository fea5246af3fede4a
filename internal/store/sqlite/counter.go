package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Counter is a sequence.Counter backed by the sequence_counters table. The
// increment is a single upsert statement, so concurrent callers never read
// the same value.
type Counter struct{ db *sql.DB }

func (d *DB) Counter() *Counter {
	return &Counter{db: d.db}
}

func (c *Counter) Next(ctx context.Context, key string) (int64, error) {
	const q = `
		INSERT INTO sequence_counters (key, value) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1
		RETURNING value`

	var n int64
	if err := c.db.QueryRowContext(ctx, q, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: next value of counter %q: %w", key, err)
	}
	return n, nil
}
