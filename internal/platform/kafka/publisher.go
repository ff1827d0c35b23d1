package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/puris-api/internal/events"
	"github.com/phrazzld/puris-api/internal/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName  = "github.com/phrazzld/puris-api/internal/platform/kafka"
	breakerName = "kafka-publisher"

	headerEventType = "event-type"

	defaultWriteTimeout = 2 * time.Second
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("event bus unavailable")

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a writer for topic on brokers.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
}

// Publisher forwards request events to Kafka.
type Publisher struct {
	writer     MessageWriter
	topic      string
	breaker    *gobreaker.CircuitBreaker
	propagator propagation.TextMapPropagator
	tracer     trace.Tracer
	logger     *slog.Logger

	// writeTimeout bounds a single broker write.
	writeTimeout time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPropagator sets the propagator that writes trace headers.
// Defaults to the global propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(pub *Publisher) { pub.propagator = p }
}

// WithTracerProvider sets the provider of the producer spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(pub *Publisher) { pub.tracer = tp.Tracer(tracerName) }
}

// WithWriteTimeout bounds how long one publish may wait on the broker.
// Defaults to 2s.
func WithWriteTimeout(d time.Duration) Option {
	return func(pub *Publisher) { pub.writeTimeout = d }
}

// NewPublisher creates a Publisher writing to topic through writer.
// m may be nil.
func NewPublisher(
	writer MessageWriter,
	topic string,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Publisher {
	if writer == nil {
		panic("writer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		writer:     writer,
		topic:      topic,
		breaker:    NewCircuitBreaker(breakerName, m),
		propagator: otel.GetTextMapPropagator(),
		tracer:     otel.Tracer(tracerName),
		logger:     logger.With(slog.String("component", "kafka_publisher")),

		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ensure Publisher implements events.EventHandler
var _ events.EventHandler = (*Publisher)(nil)

// HandleEvent publishes event. It returns ErrUnavailable without touching
// the broker while the breaker is open.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.RequestEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, span := p.tracer.Start(ctx, p.topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(event.RequestID.String()),
			attribute.String("puris.event.type", event.Type),
		))
	defer span.End()

	carrier := propagation.MapCarrier{}
	p.propagator.Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier)+1)
	headers = append(headers, kafka.Header{Key: headerEventType, Value: []byte(event.Type)})
	for key, value := range carrier {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msg := kafka.Message{
		Key:     []byte(event.RequestID.String()),
		Value:   payload,
		Headers: headers,
		Time:    event.OccurredAt,
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(writeCtx, msg)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.logger.Warn("event bus circuit open, dropping event",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type))
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		p.logger.Error("failed to publish event",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.Type),
			slog.String("request_id", event.RequestID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("topic", p.topic))
	return nil
}

// State returns the current circuit breaker state.
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
