package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

// Publisher delivers one outbox event to the broker.
type Publisher interface {
	Publish(ctx context.Context, event storage.OutboxEvent) error
}

// Envelope is the message value written to the procurement topic.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  string          `json:"occurred_at"`
	Attempt     int             `json:"attempt"`
	Payload     json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes outbox events to one Kafka topic, keyed by aggregate
// id so events for one RFQ or order stay in partition order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cleaned := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			cleaned = append(cleaned, broker)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cleaned...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}}, nil
}

// Publish writes one event and waits for broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event storage.OutboxEvent) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("kafka publisher is not configured")
	}
	msg, err := Message(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s message: %w", event.EventType, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Message converts an outbox row into a Kafka message.
func Message(event storage.OutboxEvent) (kafka.Message, error) {
	payload := json.RawMessage(event.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	value, err := json.Marshal(Envelope{
		ID:          event.ID,
		Type:        event.EventType,
		AggregateID: event.AggregateID,
		OccurredAt:  formatTime(event.CreatedAt),
		Attempt:     event.AttemptCount + 1,
		Payload:     payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode envelope: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "dedupe_key", Value: []byte(event.DedupeKey)},
		},
		Time: event.CreatedAt,
	}, nil
}
