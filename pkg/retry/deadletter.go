package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DeadLetter is a delivery that exhausted its retries
type DeadLetter struct {
	ID         string            `json:"id"`
	Subscriber string            `json:"subscriber"`
	Key        string            `json:"key"`
	Payload    json.RawMessage   `json:"payload"`
	Headers    map[string]string `json:"headers,omitempty"`
	Error      string            `json:"error"`
	Attempts   int               `json:"attempts"`
	FailedAt   time.Time         `json:"failed_at"`
	Source     string            `json:"source"`
}

// DeadLetterPublisher stores deliveries that could not be completed
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, dl *DeadLetter) error
}

// JSONProducer is satisfied by kafka.Producer
type JSONProducer interface {
	ProduceJSON(ctx context.Context, topic, key string, value interface{}, headers map[string]string) error
}

// KafkaDeadLetterPublisher writes dead letters to a Kafka topic
type KafkaDeadLetterPublisher struct {
	producer JSONProducer
	topic    string
	source   string
}

// NewKafkaDeadLetterPublisher creates a dead-letter publisher for topic
func NewKafkaDeadLetterPublisher(producer JSONProducer, topic, source string) *KafkaDeadLetterPublisher {
	return &KafkaDeadLetterPublisher{producer: producer, topic: topic, source: source}
}

// Topic returns the dead-letter topic
func (p *KafkaDeadLetterPublisher) Topic() string {
	return p.topic
}

// PublishDeadLetter produces the dead letter with descriptive headers
func (p *KafkaDeadLetterPublisher) PublishDeadLetter(ctx context.Context, dl *DeadLetter) error {
	if dl == nil {
		return errors.New("dead letter cannot be nil")
	}
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now()
	}
	dl.Source = p.source

	headers := map[string]string{
		"content_type": "application/json",
		"subscriber":   dl.Subscriber,
		"error":        dl.Error,
		"attempts":     fmt.Sprintf("%d", dl.Attempts),
		"source":       dl.Source,
	}
	for k, v := range dl.Headers {
		if _, exists := headers[k]; !exists {
			headers["original_"+k] = v
		}
	}

	return p.producer.ProduceJSON(ctx, p.topic, dl.Key, dl, headers)
}

// NoOpDeadLetterPublisher drops dead letters
type NoOpDeadLetterPublisher struct{}

// PublishDeadLetter does nothing
func (NoOpDeadLetterPublisher) PublishDeadLetter(context.Context, *DeadLetter) error {
	return nil
}
