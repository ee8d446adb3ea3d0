package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/kafka"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/retry"
)

// MessageProducer is satisfied by kafka.Producer
type MessageProducer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
}

// KafkaEventSink forwards every inventory event to a Kafka topic keyed by inventory key,
// so one partition carries each ticket type's events in order.
type KafkaEventSink struct {
	producer    MessageProducer
	topic       string
	serviceName string
}

// NewKafkaEventSink creates a Kafka sink
func NewKafkaEventSink(producer MessageProducer, topic, serviceName string) *KafkaEventSink {
	if topic == "" {
		topic = "inventory-events"
	}
	if serviceName == "" {
		serviceName = "inventory-service"
	}
	return &KafkaEventSink{producer: producer, topic: topic, serviceName: serviceName}
}

// Name is the subscriber name on the event bus
func (s *KafkaEventSink) Name() string {
	return "kafka"
}

// Topic returns the destination topic
func (s *KafkaEventSink) Topic() string {
	return s.topic
}

// Handle publishes one event
func (s *KafkaEventSink) Handle(ctx context.Context, event *domain.InventoryEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal event: %w", err))
	}

	msg := &kafka.Message{
		Topic: s.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: map[string]string{
			"event_type":   string(event.Type),
			"event_id":     event.ID,
			"source":       s.serviceName,
			"content_type": "application/json",
		},
		Timestamp: event.OccurredAt,
	}

	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}
