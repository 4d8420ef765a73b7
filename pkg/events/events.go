package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message on the bus.
//
// Topics are named checkout.<domain>.<action>; event types carry a version
// suffix (payment.completed.v1). Consumers ignore unknown payload fields.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	OccurredAt    time.Time         `json:"occurred_at"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Source        string            `json:"source"`
	Payload       any               `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func NewEvent(eventType, source string, payload any) *Event {
	return &Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Source:     source,
		Payload:    payload,
		Metadata:   make(map[string]string),
	}
}

func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithIdempotencyKey derives the event ID from key and the event type, so
// publishing the same fact twice yields the same ID and consumers that
// deduplicate by ID act on it once.
func (e *Event) WithIdempotencyKey(key string) *Event {
	e.EventID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(e.EventType+":"+key)).String()
	return e
}

func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// DecodePayload converts the payload into v. A consumed event holds its
// payload as generic JSON until decoded.
func (e *Event) DecodePayload(v any) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// =============================================================================
// Topics
// =============================================================================
// Published by: checkout-service
// Consumed by: receipt-service (completed)
// =============================================================================

const (
	// Payload: PaymentInitiatedPayload
	TopicPaymentInitiated = "checkout.payments.initiated"

	// Payload: PaymentCompletedPayload
	TopicPaymentCompleted = "checkout.payments.completed"

	// Payload: PaymentFailedPayload
	TopicPaymentFailed = "checkout.payments.failed"
)

var AllTopics = []string{
	TopicPaymentInitiated,
	TopicPaymentCompleted,
	TopicPaymentFailed,
}

const (
	EventTypePaymentInitiated = "payment.initiated.v1"
	EventTypePaymentCompleted = "payment.completed.v1"
	EventTypePaymentFailed    = "payment.failed.v1"
)

// =============================================================================
// Interfaces
// =============================================================================

type Handler func(ctx context.Context, event *Event) error

type Publisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

type Subscriber interface {
	// Subscribe consumes topic in the background until ctx is cancelled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// NopPublisher drops every event. Services use it when no brokers are
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *Event) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
