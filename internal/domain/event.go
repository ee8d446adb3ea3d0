package domain

import "time"

// EventType names a change published on the event stream
type EventType string

const (
	EventInventoryUpdated  EventType = "inventory-updated"
	EventHoldCreated       EventType = "hold-created"
	EventHoldReleased      EventType = "hold-released"
	EventPurchaseCompleted EventType = "purchase-completed"
	EventAlertCreated      EventType = "alert-created"
)

// InventoryEvent is the payload delivered to subscribers
type InventoryEvent struct {
	ID           string           `json:"id"`
	Type         EventType        `json:"type"`
	OccurredAt   time.Time        `json:"occurred_at"`
	EventID      string           `json:"event_id"`
	TicketTypeID string           `json:"ticket_type_id"`
	Inventory    *InventoryRecord `json:"inventory,omitempty"`
	Hold         *Hold            `json:"hold,omitempty"`
	Transaction  *Transaction     `json:"transaction,omitempty"`
	Alert        *Alert           `json:"alert,omitempty"`
}

// Key partitions events by inventory key so per-key order survives downstream
func (e *InventoryEvent) Key() string {
	return InventoryKey(e.EventID, e.TicketTypeID)
}
