package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
)

type KafkaPublisher struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	brokers []string
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writers: make(map[string]*kafka.Writer),
		brokers: brokers,
	}
}

func (p *KafkaPublisher) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	ctx, span := telemetry.StartProducerSpan(ctx, topic)
	defer span.End()

	msg, err := encodeMessage(ctx, event)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.String("messaging.message.id", event.EventID),
		attribute.String("event.type", event.EventType),
		attribute.Int("messaging.message.body.size", len(msg.Value)),
	)

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}

	metrics.RecordKafkaMessageProduced(event.Source, topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, w := range p.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// encodeMessage fills in a missing id or timestamp, then marshals the event
// with the trace context in the headers. Messages are keyed by correlation id
// so one checkout's events land on one partition.
func encodeMessage(ctx context.Context, event *Event) (kafka.Message, error) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	key := event.CorrelationID
	if key == "" {
		key = event.EventID
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(event.EventType)}}
	telemetry.InjectTraceContext(ctx, &headers)

	return kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}, nil
}

// =============================================================================
// Subscriber
// =============================================================================

type KafkaSubscriber struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

func NewKafkaSubscriber(brokers []string, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{
		brokers: brokers,
		groupID: groupID,
		readers: make([]*kafka.Reader, 0),
	}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if handler == nil {
		return errors.New("events: nil handler")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.brokers,
		Topic:    topic,
		GroupID:  s.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn().Err(err).Str("topic", topic).Msg("Kafka read failed")
				continue
			}
			s.handle(ctx, msg, handler)
		}
	}()

	return nil
}

// handle runs handler for one message. Handler errors are logged and the
// message is not redelivered.
func (s *KafkaSubscriber) handle(ctx context.Context, msg kafka.Message, handler Handler) {
	msgCtx, span := telemetry.StartConsumerSpan(ctx, msg)
	defer span.End()

	metrics.RecordKafkaMessageConsumed(s.groupID, msg.Topic, s.groupID)

	event, err := decodeMessage(msg)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Dropping undecodable message")
		return
	}
	span.SetAttributes(attribute.String("event.type", event.EventType))

	if err := handler(msgCtx, event); err != nil {
		span.RecordError(err)
		logger.WithContext(msgCtx).Error().Err(err).
			Str("event_id", event.EventID).
			Str("event_type", event.EventType).
			Msg("Event handler failed")
	}
}

func decodeMessage(msg kafka.Message) (*Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.EventType == "" {
		return nil, errors.New("event has no type")
	}
	return &event, nil
}

// Close stops the readers and waits for in-flight handlers.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	var errs []error
	for _, r := range s.readers {
		errs = append(errs, r.Close())
	}
	s.readers = nil
	s.mu.Unlock()

	s.wg.Wait()
	return errors.Join(errs...)
}
