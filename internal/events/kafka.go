package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	skafka "github.com/segmentio/kafka-go"

	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// Writer defines the subset of segmentio kafka.Writer we need.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by customer so a customer's events stay ordered
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &skafka.Writer{
		Addr:                   skafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &skafka.Hash{},
		RequiredAcks:           skafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]skafka.Message, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
		}
		msgs = append(msgs, skafka.Message{
			Key:   []byte(strconv.FormatUint(uint64(e.CustomerID), 10)),
			Value: b,
			Headers: []skafka.Header{
				{Key: "event-type", Value: []byte(e.Type)},
				{Key: "event-id", Value: []byte(e.ID.String())},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher logs events instead of shipping them; used when no broker is configured
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		logger.FromContext(ctx).Info("domain event",
			"type", e.Type, "id", e.ID, "customer_id", e.CustomerID, "plan_id", e.PlanID, "actor", e.Actor.String())
	}
	return nil
}

func (LogPublisher) Close() error { return nil }
