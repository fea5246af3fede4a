// Package coordinator runs the checkout workflows as orchestrated sagas over
// the order, payment, invoice and delivery services. Every transition is
// appended to the checkout log.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/clickmarket/marketplace/internal/coordinator/sagalog"
)

// Step represents a single unit of work in the Saga.
// Compensate undoes Execute; steps with nothing to undo return nil.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	saga   string
	sagaID string
	steps  []Step
	repo   sagalog.Repository // nil-safe: logging skipped if nil
	clock  func() time.Time
}

func NewOrchestrator(saga, sagaID string, steps []Step, repo sagalog.Repository) *Orchestrator {
	return &Orchestrator{saga: saga, sagaID: sagaID, steps: steps, repo: repo, clock: time.Now}
}

// Start runs the saga steps sequentially.
// If a step fails, it triggers the compensation of all previously successful steps.
func (o *Orchestrator) Start(ctx context.Context, payload string) error {
	o.record(ctx, sagalog.StatusStarted, "", payload, nil)

	var successfulSteps []Step
	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing step", "saga", o.saga, "saga_id", o.sagaID, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.WarnContext(ctx, "step failed, starting rollback",
				"saga", o.saga,
				"saga_id", o.sagaID,
				"step", step.Name(),
				"error", err,
			)
			errs := []string{step.Name() + " failed: " + err.Error()}
			o.record(ctx, sagalog.StatusCompensating, step.Name(), "", errs)
			errs = append(errs, o.rollback(ctx, successfulSteps)...)
			o.record(ctx, sagalog.StatusFailed, step.Name(), "", errs)
			return err
		}
		// Track successful step for potential compensation (LIFO)
		successfulSteps = append(successfulSteps, step)
		o.record(ctx, sagalog.StatusStepDone, step.Name(), "", nil)
	}

	o.record(ctx, sagalog.StatusCompleted, "", "", nil)
	slog.InfoContext(ctx, "saga completed", "saga", o.saga, "saga_id", o.sagaID)
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		slog.InfoContext(ctx, "compensating step", "saga", o.saga, "saga_id", o.sagaID, "step", step.Name())
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate step",
				"saga", o.saga,
				"saga_id", o.sagaID,
				"step", step.Name(),
				"error", err,
			)
			errs = append(errs, "compensation of "+step.Name()+" failed: "+err.Error())
		}
	}
	return errs
}

func (o *Orchestrator) record(ctx context.Context, status sagalog.Status, step, payload string, errs []string) {
	if o.repo == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, o.saga, o.sagaID, status, step, payload, errs, o.clock())
	if err := o.repo.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "failed to write checkout log", "saga_id", o.sagaID, "status", status, "error", err)
	}
}
