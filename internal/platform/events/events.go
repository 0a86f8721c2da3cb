package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	TypeBalanceChanged   = "leave.balance.changed"
	TypeRequestCreated   = "leave.request.created"
	TypeRequestReviewed  = "leave.request.reviewed"
	TypeCompOffApplied   = "leave.compoff.applied"
	TypeNotificationSent = "notification.created"
)

type Event struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organizationId"`
	AggregateID    string    `json:"aggregateId"`
	OccurredAt     time.Time `json:"occurredAt"`
	Data           any       `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// Publish keys messages by aggregate so events for one balance or request stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.Type, err)
	}
	msg := kafkago.Message{
		Key:   []byte(evt.AggregateID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "organization_id", Value: []byte(evt.OrganizationID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
