package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clickmarket/marketplace/internal/coordinator/sagalog"
)

// SagaLogRepository is the SQLite implementation of sagalog.Repository.
type SagaLogRepository struct{ db *sql.DB }

func (d *DB) SagaLog() *SagaLogRepository {
	return &SagaLogRepository{db: d.db}
}

// Save inserts a new log entry. It is safe to call concurrently.
func (r *SagaLogRepository) Save(ctx context.Context, entry *sagalog.SagaLog) error {
	const q = `
		INSERT INTO saga_logs
			(saga_id, saga, status, current_step, payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.SagaID,
		entry.Saga,
		string(entry.Status),
		entry.CurrentStep,
		nullable(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save saga log for %q: %w", entry.SagaID, err)
	}
	return nil
}

func (r *SagaLogRepository) History(ctx context.Context, sagaID string) ([]*sagalog.SagaLog, error) {
	const q = `
		SELECT saga_id, saga, status, current_step, COALESCE(payload, ''), error_messages,
		       trace_id, span_id, updated_at
		FROM   saga_logs
		WHERE  saga_id = ?
		ORDER  BY updated_at, id`

	rows, err := r.db.QueryContext(ctx, q, sagaID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: saga log history for %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []*sagalog.SagaLog
	for rows.Next() {
		var entry sagalog.SagaLog
		var updatedAt string
		if err := rows.Scan(
			&entry.SagaID,
			&entry.Saga,
			&entry.Status,
			&entry.CurrentStep,
			&entry.Payload,
			&entry.ErrorMessages,
			&entry.TraceID,
			&entry.SpanID,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan saga log for %q: %w", sagaID, err)
		}
		if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: saga log history for %q: %w", sagaID, err)
	}
	return out, nil
}
