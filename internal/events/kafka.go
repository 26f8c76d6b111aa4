// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/vasiliy-maslov/order-intake/internal/order"
)

const StatusChangedType = "order.status_changed"

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Envelope struct {
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Data       order.StatusChange `json:"data"`
}

type KafkaPublisher struct {
	writer  Writer
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	})
}

func NewPublisher(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

// PublishStatusChanged writes one message keyed by order id, so the changes
// of an order stay ordered within its partition.
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, change order.StatusChange) error {
	payload, err := json.Marshal(Envelope{
		Type:       StatusChangedType,
		OccurredAt: change.ChangedAt,
		Data:       change,
	})
	if err != nil {
		return fmt.Errorf("events: failed to marshal status change: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(change.OrderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(StatusChangedType)},
		},
		Time: change.ChangedAt,
	})
	if err != nil {
		return fmt.Errorf("events: failed to write status change of order %s: %w", change.OrderID, err)
	}

	log.Debug().Stringer("order_id", change.OrderID).Stringer("to", change.To).Msg("events: status change published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
