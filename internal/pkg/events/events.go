// Package events publishes order lifecycle events (order.confirmed,
// invoice.issued, delivery.status_changed, ...) after the owning service has
// persisted the change.
package events

import (
	"context"
	"time"
)

// Event is the envelope written to the broker. Data is the entity snapshot
// after the change.
type Event struct {
	Type        string    `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Data        any       `json:"data,omitempty"`
}

// Publisher is the interface used by services to publish events.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

func New(eventType, aggregateID string, at time.Time, data any) Event {
	return Event{Type: eventType, AggregateID: aggregateID, OccurredAt: at.UTC(), Data: data}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
func (Nop) Close() error { return nil }
