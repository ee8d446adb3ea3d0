package service

import (
	"context"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// AvailabilityWriter is satisfied by repository.RedisAvailabilityRepository
type AvailabilityWriter interface {
	Write(ctx context.Context, record *domain.InventoryRecord) error
}

// AvailabilityMirror copies the record carried by inventory-updated events into the read model
type AvailabilityMirror struct {
	writer AvailabilityWriter
}

// NewAvailabilityMirror creates the mirror subscriber
func NewAvailabilityMirror(writer AvailabilityWriter) *AvailabilityMirror {
	return &AvailabilityMirror{writer: writer}
}

// Name is the subscriber name on the event bus
func (m *AvailabilityMirror) Name() string {
	return "availability-mirror"
}

// Handle writes the snapshot
func (m *AvailabilityMirror) Handle(ctx context.Context, event *domain.InventoryEvent) error {
	if event.Type != domain.EventInventoryUpdated || event.Inventory == nil {
		return nil
	}
	return m.writer.Write(ctx, event.Inventory)
}
