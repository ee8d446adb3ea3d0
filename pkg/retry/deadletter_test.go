package retry

import (
	"context"
	"errors"
	"testing"
)

type mockJSONProducer struct {
	topic   string
	key     string
	value   interface{}
	headers map[string]string
	err     error
}

func (m *mockJSONProducer) ProduceJSON(ctx context.Context, topic, key string, value interface{}, headers map[string]string) error {
	m.topic = topic
	m.key = key
	m.value = value
	m.headers = headers
	return m.err
}

func TestKafkaDeadLetterPublisher_Publish(t *testing.T) {
	producer := &mockJSONProducer{}
	p := NewKafkaDeadLetterPublisher(producer, "inventory-events.dlq", "inventory-service")

	dl := &DeadLetter{
		ID:         "evt-1",
		Subscriber: "kafka",
		Key:        "concert-1:vip",
		Payload:    []byte(`{"type":"hold-created"}`),
		Headers:    map[string]string{"event_type": "hold-created"},
		Error:      "broker unavailable",
		Attempts:   6,
	}

	if err := p.PublishDeadLetter(context.Background(), dl); err != nil {
		t.Fatalf("PublishDeadLetter() error = %v", err)
	}

	if producer.topic != "inventory-events.dlq" {
		t.Errorf("topic = %q, want inventory-events.dlq", producer.topic)
	}
	if producer.key != "concert-1:vip" {
		t.Errorf("key = %q, want concert-1:vip", producer.key)
	}
	if producer.headers["attempts"] != "6" {
		t.Errorf("attempts header = %q, want 6", producer.headers["attempts"])
	}
	if producer.headers["original_event_type"] != "hold-created" {
		t.Errorf("original_event_type header = %q", producer.headers["original_event_type"])
	}
	if dl.Source != "inventory-service" || dl.FailedAt.IsZero() {
		t.Errorf("source/failed_at not stamped: %+v", dl)
	}
}

func TestKafkaDeadLetterPublisher_Nil(t *testing.T) {
	p := NewKafkaDeadLetterPublisher(&mockJSONProducer{}, "dlq", "svc")
	if err := p.PublishDeadLetter(context.Background(), nil); err == nil {
		t.Error("expected error for nil dead letter")
	}
}

func TestKafkaDeadLetterPublisher_ProducerError(t *testing.T) {
	wantErr := errors.New("kafka down")
	p := NewKafkaDeadLetterPublisher(&mockJSONProducer{err: wantErr}, "dlq", "svc")
	if err := p.PublishDeadLetter(context.Background(), &DeadLetter{}); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}
