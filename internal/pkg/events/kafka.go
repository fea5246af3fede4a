package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer defines the subset of segmentio kafka.Writer we need. This makes the producer testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish call. Services publish after the
// store write, so a slow broker delays the response by at most this much.
const DefaultPublishTimeout = 2 * time.Second

// KafkaPublisher is a thin wrapper around a kafka writer implementing Publisher.
type KafkaPublisher struct {
	writer  Writer
	timeout time.Duration
}

type KafkaOption func(*KafkaPublisher)

// WithPublishTimeout replaces DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) KafkaOption {
	return func(p *KafkaPublisher) { p.timeout = d }
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
// The leader acknowledgement is enough: events are notifications, the
// stores stay the source of truth.
func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: DefaultPublishTimeout,
	}
	return NewKafkaPublisherWithWriter(w, opts...)
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{writer: w, timeout: DefaultPublishTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish marshals value to JSON and writes it keyed by key. Keys are
// aggregate ids, so the hash balancer keeps one order's events in order.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka: marshal event %q: %w", key, err)
	}

	msg := kafka.Message{Key: []byte(key), Value: b}
	if e, ok := value.(Event); ok {
		msg.Headers = []kafka.Header{{Key: "event-type", Value: []byte(e.Type)}}
	}

	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, msg); err != nil {
		slog.WarnContext(ctx, "kafka write error", "key", key, "error", err)
		return fmt.Errorf("kafka: write event %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the structured log. It is the default when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	if e, ok := value.(Event); ok {
		slog.InfoContext(ctx, "event", "type", e.Type, "aggregate_id", e.AggregateID)
		return nil
	}
	slog.InfoContext(ctx, "event", "key", key)
	return nil
}

func (LogPublisher) Close() error { return nil }
