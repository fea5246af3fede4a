// Package sagalog defines the checkout log: a durable audit trail of every
// transition a checkout or settlement saga goes through.
//
// Each row carries the trace and span ids active when it was written, so a
// stuck checkout can be followed from the log straight into its trace.
package sagalog

import "time"

// Status represents the lifecycle state of a saga execution.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// SagaLog is a single row in the saga_logs table.
type SagaLog struct {
	// SagaID is the order id the saga works on, so the log joins with the
	// business data.
	SagaID string `json:"saga_id"`

	// Saga names the workflow, "checkout" or "settlement".
	Saga string `json:"saga"`

	Status      Status `json:"status"`
	CurrentStep string `json:"current_step"`

	// Payload is the JSON input that started the saga, written on STARTED
	// rows only.
	Payload string `json:"payload,omitempty"`

	// ErrorMessages is a JSON array of the failures seen so far.
	ErrorMessages string `json:"error_messages"`

	TraceID   string    `json:"trace_id,omitempty"`
	SpanID    string    `json:"span_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
