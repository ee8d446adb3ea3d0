package service

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// JSONPublisher is satisfied by rabbitmq.Publisher
type JSONPublisher interface {
	PublishJSON(ctx context.Context, messageID string, v interface{}, headers map[string]string) error
}

// AlertNotifier hands alert-created events to the notification queue.
// Other event types are ignored.
type AlertNotifier struct {
	publisher JSONPublisher
}

// NewAlertNotifier creates an alert notifier
func NewAlertNotifier(publisher JSONPublisher) *AlertNotifier {
	return &AlertNotifier{publisher: publisher}
}

// Name is the subscriber name on the event bus
func (n *AlertNotifier) Name() string {
	return "alert-notifier"
}

// Handle publishes alerts
func (n *AlertNotifier) Handle(ctx context.Context, event *domain.InventoryEvent) error {
	if event.Type != domain.EventAlertCreated || event.Alert == nil {
		return nil
	}

	headers := map[string]string{
		"alert_type": string(event.Alert.Type),
		"severity":   string(event.Alert.Severity),
		"event_id":   event.EventID,
	}
	// Message id is the alert id so consumers can drop redeliveries
	if err := n.publisher.PublishJSON(ctx, event.Alert.ID, event.Alert, headers); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", event.Alert.ID, err)
	}
	return nil
}
