// Package worker runs the background jobs of the service.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// OverdueSweeper is implemented by the invoice service.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, limit, workers int) (int, error)
}

// Overdue persists the issued -> overdue move of invoices that nothing else
// writes. The rule itself runs on every save; this only forces the save.
type Overdue struct {
	invoices OverdueSweeper
	interval time.Duration
	batch    int
	workers  int
}

func NewOverdue(invoices OverdueSweeper, interval time.Duration, batch, workers int) *Overdue {
	return &Overdue{invoices: invoices, interval: interval, batch: batch, workers: workers}
}

// Run sweeps once right away, then every interval, until ctx is done.
// It always returns nil: failed rounds are logged and retried next tick.
func (o *Overdue) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	slog.InfoContext(ctx, "overdue sweeper started", "interval", o.interval.String(), "batch", o.batch)

	for {
		o.RunOnce(ctx)
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "overdue sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce drains every due invoice, one batch at a time, and returns how
// many were moved.
func (o *Overdue) RunOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		moved, err := o.invoices.SweepOverdue(ctx, o.batch, o.workers)
		total += moved
		if err != nil {
			slog.ErrorContext(ctx, "overdue sweep failed", "moved", total, "error", err)
			break
		}
		// A short batch means nothing is left; a batch of conflicts only
		// is retried on the next tick.
		if moved < o.batch {
			break
		}
	}
	if total > 0 {
		slog.InfoContext(ctx, "invoices marked overdue", "count", total)
	}
	return total
}
