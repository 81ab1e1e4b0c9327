// Package events publishes order lifecycle events for downstream consumers
// (kitchen display, analytics). Publishing is best effort: the order row is
// the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// Event types.
const (
	TypeOrderCreated   = "order.created"
	TypeOrderFinalized = "order.finalized"
)

// Event is the JSON payload written to the topic.
type Event struct {
	Type         string              `json:"type"`
	OrderID      uint                `json:"order_id"`
	UserID       int64               `json:"user_id"`
	Status       domain.OrderStatus  `json:"status"`
	DeliveryType domain.DeliveryType `json:"delivery_type,omitempty"`
	PaymentType  domain.PaymentType  `json:"payment_type,omitempty"`
	Price        string              `json:"price"`
	At           time.Time           `json:"at"`
}

// FromOrder builds an event of type typ for o.
func FromOrder(typ string, o *domain.Order, at time.Time) Event {
	return Event{
		Type:         typ,
		OrderID:      o.ID,
		UserID:       o.UserID,
		Status:       o.Status,
		DeliveryType: o.DeliveryType,
		PaymentType:  o.PaymentType,
		Price:        o.Price.StringFixed(2),
		At:           at.UTC(),
	}
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// KafkaPublisher writes events to a topic, keyed by order id so every event
// of one order lands on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherWith(p, topic), nil
}

// NewKafkaPublisherWith wraps an existing producer.
func NewKafkaPublisherWith(p sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(e.OrderID), 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(e.Type)},
		},
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka send %s: %w", e.Type, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
