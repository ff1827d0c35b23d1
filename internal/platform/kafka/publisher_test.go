package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/events"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/phrazzld/puris-api/internal/platform/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// fakeWriter records messages and fails while err is set.
type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
	calls    int
	closed   bool
	block    bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newEvent() *events.RequestEvent {
	req := &domain.Request{
		ID:          uuid.New(),
		State:       domain.RequestStateProcessing,
		PartnerBPNL: "BPNL4444444444XX",
		Version:     2,
		UpdatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	return events.NewRequestEvent(req, domain.RequestStateReceived)
}

func header(msg kafkago.Message, key string) (string, bool) {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func TestPublisherHandleEvent(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	writer := &fakeWriter{}
	pub := kafka.NewPublisher(writer, "puris.request-events", nil, nil,
		kafka.WithPropagator(propagation.TraceContext{}),
		kafka.WithTracerProvider(tp))

	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	defer span.End()

	event := newEvent()
	require.NoError(t, pub.HandleEvent(ctx, event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, event.RequestID.String(), string(msg.Key), "events of one request share a key")
	assert.Equal(t, event.OccurredAt, msg.Time)

	var decoded events.RequestEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, events.TypeRequestProcessing, decoded.Type)
	assert.Equal(t, domain.RequestStateReceived, decoded.From)
	assert.Equal(t, domain.RequestStateProcessing, decoded.To)

	eventType, ok := header(msg, "event-type")
	assert.True(t, ok)
	assert.Equal(t, events.TypeRequestProcessing, eventType)

	traceparent, ok := header(msg, "traceparent")
	require.True(t, ok, "trace context should travel in the headers")
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestPublisherWriteFailure(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{err: errors.New("leader not available")}
	pub := kafka.NewPublisher(writer, "puris.request-events", nil, nil)

	err := pub.HandleEvent(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.NotErrorIs(t, err, kafka.ErrUnavailable)
	assert.Equal(t, gobreaker.StateClosed, pub.State())
}

func TestPublisherWriteTimeout(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{block: true}
	pub := kafka.NewPublisher(writer, "puris.request-events", nil, nil,
		kafka.WithWriteTimeout(50*time.Millisecond))

	start := time.Now()
	err := pub.HandleEvent(context.Background(), newEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second, "a stalled broker should not hold the caller")
	assert.Equal(t, 1, writer.calls)
}

func TestPublisherCircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	writer := &fakeWriter{err: errors.New("broker down")}
	pub := kafka.NewPublisher(writer, "puris.request-events", m, nil)

	for i := 0; i < 10; i++ {
		_ = pub.HandleEvent(context.Background(), newEvent())
	}
	assert.Equal(t, gobreaker.StateOpen, pub.State())
	assert.Equal(t, 10, writer.calls)

	// While open, the broker is not called at all.
	err := pub.HandleEvent(context.Background(), newEvent())
	assert.ErrorIs(t, err, kafka.ErrUnavailable)
	assert.Equal(t, 10, writer.calls)

	// Every state series is exported, open was entered once.
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "puris_circuit_breaker_states"))
}

func TestPublisherClose(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	pub := kafka.NewPublisher(writer, "puris.request-events", nil, nil)
	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	w := kafka.NewWriter([]string{"kafka-1:9092", "kafka-2:9092"}, "puris.request-events")
	assert.Equal(t, "puris.request-events", w.Topic)
	assert.NotNil(t, w.Addr)
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
}
