package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	block  bool
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherWritesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), "ord-1", New("order.confirmed", "ord-1", at, map[string]string{"status": "confirmed"}))
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ord-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "order.confirmed", string(msg.Headers[0].Value))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "order.confirmed", got["type"])
	assert.Equal(t, "ord-1", got["aggregate_id"])
	assert.Equal(t, "2024-01-01T10:00:00Z", got["occurred_at"])
}

func TestKafkaPublisherWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(w)

	err := p.Publish(context.Background(), "k", New("invoice.issued", "inv-1", time.Now(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisherBoundsSlowBroker(t *testing.T) {
	w := &fakeWriter{block: true}
	p := NewKafkaPublisherWithWriter(w, WithPublishTimeout(20*time.Millisecond))

	start := time.Now()
	err := p.Publish(context.Background(), "ord-1", New("order.confirmed", "ord-1", start, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestKafkaPublisherMarshalError(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	err := p.Publish(context.Background(), "k", make(chan int))
	require.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestKafkaPublisherClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaPublisherWithWriter(w).Close())
	assert.True(t, w.closed)
}
