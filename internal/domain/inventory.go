package domain

import (
	"fmt"
	"time"
)

// InventoryRecord holds the sellable quantity of one ticket type of one event
type InventoryRecord struct {
	EventID           string    `json:"event_id"`
	TicketTypeID      string    `json:"ticket_type_id"`
	TicketTypeName    string    `json:"ticket_type_name"`
	TotalQuantity     int       `json:"total_quantity"`
	SoldQuantity      int       `json:"sold_quantity"`
	HeldQuantity      int       `json:"held_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	LastUpdated       time.Time `json:"last_updated"`
}

// InventoryKey is the lock and storage key of a record
func InventoryKey(eventID, ticketTypeID string) string {
	return eventID + ":" + ticketTypeID
}

// NewInventoryRecord creates a record with availability derived from total and sold
func NewInventoryRecord(eventID, ticketTypeID, name string, total, sold int, now time.Time) *InventoryRecord {
	return &InventoryRecord{
		EventID:           eventID,
		TicketTypeID:      ticketTypeID,
		TicketTypeName:    name,
		TotalQuantity:     total,
		SoldQuantity:      sold,
		AvailableQuantity: total - sold,
		LastUpdated:       now,
	}
}

// Key returns the record's key
func (r *InventoryRecord) Key() string {
	return InventoryKey(r.EventID, r.TicketTypeID)
}

// Clone returns a copy safe to hand out of a store
func (r *InventoryRecord) Clone() *InventoryRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// CheckInvariants verifies available == total - sold - held and that no quantity is negative
func (r *InventoryRecord) CheckInvariants() error {
	if r.SoldQuantity < 0 || r.HeldQuantity < 0 || r.AvailableQuantity < 0 {
		return InternalError("negative quantity on %s: sold=%d held=%d available=%d",
			r.Key(), r.SoldQuantity, r.HeldQuantity, r.AvailableQuantity)
	}
	if r.AvailableQuantity != r.TotalQuantity-r.SoldQuantity-r.HeldQuantity {
		return InternalError("availability drift on %s: total=%d sold=%d held=%d available=%d",
			r.Key(), r.TotalQuantity, r.SoldQuantity, r.HeldQuantity, r.AvailableQuantity)
	}
	return nil
}

// Hold moves qty from available to held
func (r *InventoryRecord) Hold(qty int, now time.Time) {
	r.HeldQuantity += qty
	r.AvailableQuantity -= qty
	r.LastUpdated = now
}

// Release moves qty from held back to available
func (r *InventoryRecord) Release(qty int, now time.Time) {
	r.HeldQuantity -= qty
	r.AvailableQuantity += qty
	r.LastUpdated = now
}

// ConvertHeld moves qty from held to sold; availability is unchanged
func (r *InventoryRecord) ConvertHeld(qty int, now time.Time) {
	r.HeldQuantity -= qty
	r.SoldQuantity += qty
	r.LastUpdated = now
}

// Sell moves qty from available straight to sold
func (r *InventoryRecord) Sell(qty int, now time.Time) {
	r.SoldQuantity += qty
	r.AvailableQuantity -= qty
	r.LastUpdated = now
}

// ProvisionRequest creates the inventory record of a ticket type at event setup
type ProvisionRequest struct {
	EventID        string `json:"event_id" yaml:"event_id"`
	TicketTypeID   string `json:"ticket_type_id" yaml:"ticket_type_id"`
	TicketTypeName string `json:"ticket_type_name" yaml:"ticket_type_name"`
	TotalQuantity  int    `json:"total_quantity" yaml:"total_quantity"`
	SoldQuantity   int    `json:"sold_quantity" yaml:"sold_quantity"`
}

// Validate validates the provision request
func (p *ProvisionRequest) Validate() error {
	if p.EventID == "" {
		return ErrInvalidEventID
	}
	if p.TicketTypeID == "" {
		return ErrInvalidTicketTypeID
	}
	if p.TotalQuantity < 0 {
		return ErrInvalidTotalQuantity
	}
	if p.SoldQuantity < 0 || p.SoldQuantity > p.TotalQuantity {
		return fmt.Errorf("%w: sold=%d total=%d", ErrInvalidSoldQuantity, p.SoldQuantity, p.TotalQuantity)
	}
	return nil
}

// InventoryStatus aggregates all ticket types of one event
type InventoryStatus struct {
	EventID        string             `json:"event_id"`
	TotalTickets   int                `json:"total_tickets"`
	TotalSold      int                `json:"total_sold"`
	TotalHeld      int                `json:"total_held"`
	TotalAvailable int                `json:"total_available"`
	TicketTypes    []*InventoryRecord `json:"ticket_types"`
	ActiveHolds    []*Hold            `json:"active_holds"`
	LastUpdated    time.Time          `json:"last_updated"`
}

// AvailabilityStatus is the display status of a ticket type
type AvailabilityStatus string

const (
	AvailabilityComingSoon    AvailabilityStatus = "coming-soon"
	AvailabilitySoldOut       AvailabilityStatus = "sold-out"
	AvailabilityCriticalStock AvailabilityStatus = "critical-stock"
	AvailabilityLowStock      AvailabilityStatus = "low-stock"
	AvailabilityAvailable     AvailabilityStatus = "available"
)

// TicketAvailability is the derived availability of a ticket type
type TicketAvailability struct {
	Status            AvailabilityStatus `json:"status"`
	AvailableQuantity int                `json:"available_quantity"`
	TotalQuantity     int                `json:"total_quantity"`
	Message           string             `json:"message"`
}

// DeriveAvailability maps a record to its display status; a nil record is not on sale yet
func DeriveAvailability(r *InventoryRecord, t Thresholds) TicketAvailability {
	if r == nil {
		return TicketAvailability{Status: AvailabilityComingSoon, Message: "Tickets not yet available"}
	}

	out := TicketAvailability{AvailableQuantity: r.AvailableQuantity, TotalQuantity: r.TotalQuantity}
	switch {
	case r.AvailableQuantity == 0:
		out.Status = AvailabilitySoldOut
		out.Message = "Sold Out"
	case r.AvailableQuantity <= t.CriticalStock:
		out.Status = AvailabilityCriticalStock
		out.Message = fmt.Sprintf("Only %d left!", r.AvailableQuantity)
	case r.AvailableQuantity <= t.LowStock:
		out.Status = AvailabilityLowStock
		out.Message = fmt.Sprintf("Only %d remaining", r.AvailableQuantity)
	default:
		out.Status = AvailabilityAvailable
		out.Message = fmt.Sprintf("%d available", r.AvailableQuantity)
	}
	return out
}
