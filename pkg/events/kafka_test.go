package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
)

func init() {
	logger.Init("test", "error", false)
}

func TestNewKafkaPublisher(t *testing.T) {
	publisher := NewKafkaPublisher([]string{"localhost:9092", "localhost:9093"})
	require.NotNil(t, publisher)
	assert.Len(t, publisher.brokers, 2)
	assert.NotNil(t, publisher.writers)
}

func TestKafkaPublisherGetWriter(t *testing.T) {
	publisher := NewKafkaPublisher([]string{"localhost:9092"})
	defer publisher.Close()

	w1 := publisher.getWriter(TopicPaymentCompleted)
	w2 := publisher.getWriter(TopicPaymentCompleted)
	w3 := publisher.getWriter(TopicPaymentFailed)

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, w3)
	assert.Equal(t, TopicPaymentFailed, w3.Topic)
}

func TestInterfaces(t *testing.T) {
	var _ Publisher = (*KafkaPublisher)(nil)
	var _ Subscriber = (*KafkaSubscriber)(nil)
	var _ Publisher = NopPublisher{}
}

func TestEncodeMessage(t *testing.T) {
	event := &Event{
		EventType:     EventTypePaymentCompleted,
		Source:        "checkout-service",
		CorrelationID: "session-9",
		Payload:       PaymentCompletedPayload{Reference: "ref_9", Amount: 500},
	}

	msg, err := encodeMessage(context.Background(), event)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.OccurredAt.IsZero())
	assert.Equal(t, "session-9", string(msg.Key))

	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, EventTypePaymentCompleted, decoded.EventType)

	var payload PaymentCompletedPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "ref_9", payload.Reference)
}

func TestEncodeMessageKeyFallsBackToEventID(t *testing.T) {
	event := NewEvent(EventTypePaymentFailed, "checkout-service", nil)
	msg, err := encodeMessage(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, string(msg.Key))
}

func TestEncodeMessageCarriesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	msg, err := encodeMessage(ctx, NewEvent(EventTypePaymentInitiated, "test", nil))
	require.NoError(t, err)

	var traceparent string
	for _, h := range msg.Headers {
		if h.Key == "traceparent" {
			traceparent = string(h.Value)
		}
	}
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := decodeMessage(kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)

	_, err = decodeMessage(kafka.Message{Value: []byte(`{"event_id":"x"}`)})
	assert.Error(t, err)
}

func TestSubscriberHandle(t *testing.T) {
	sub := NewKafkaSubscriber([]string{"localhost:9092"}, "receipts")

	msg, err := encodeMessage(context.Background(), NewEvent(EventTypePaymentCompleted, "test", PaymentCompletedPayload{Reference: "ref_1"}))
	require.NoError(t, err)
	msg.Topic = TopicPaymentCompleted

	var seen []string
	handler := func(_ context.Context, e *Event) error {
		var p PaymentCompletedPayload
		if err := e.DecodePayload(&p); err != nil {
			return err
		}
		seen = append(seen, p.Reference)
		return errors.New("handler failure is logged, not fatal")
	}

	sub.handle(context.Background(), msg, handler)
	sub.handle(context.Background(), kafka.Message{Topic: TopicPaymentCompleted, Value: []byte("{")}, handler)

	assert.Equal(t, []string{"ref_1"}, seen)
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	sub := NewKafkaSubscriber([]string{"localhost:9092"}, "receipts")
	assert.Error(t, sub.Subscribe(context.Background(), TopicPaymentCompleted, nil))
	assert.NoError(t, sub.Close())
}
