package dto

import (
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// CreateHoldRequest represents a request to reserve tickets during checkout
type CreateHoldRequest struct {
	EventID      string          `json:"event_id" binding:"required"`
	TicketTypeID string          `json:"ticket_type_id" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,min=1"`
	SessionID    string          `json:"session_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	HoldType     domain.HoldType `json:"hold_type,omitempty"`
	// HoldDurationMinutes overrides the hold type default; zero yields an already-due hold
	HoldDurationMinutes *int `json:"hold_duration_minutes,omitempty" binding:"omitempty,min=0,max=525600"`
}

// Validate validates the create hold request
func (r *CreateHoldRequest) Validate() error {
	if r.EventID == "" {
		return domain.ErrInvalidEventID
	}
	if r.TicketTypeID == "" {
		return domain.ErrInvalidTicketTypeID
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if r.HoldType != "" && !r.HoldType.IsValid() {
		return domain.ErrInvalidHoldType
	}
	if r.HoldDurationMinutes != nil && (*r.HoldDurationMinutes < 0 || *r.HoldDurationMinutes > domain.MaxHoldDurationMinutes) {
		return domain.ErrInvalidHoldDuration
	}
	return nil
}

// HoldResult is returned by a successful hold
type HoldResult struct {
	Success          bool                       `json:"success"`
	UpdatedInventory *domain.InventoryRecord    `json:"updated_inventory"`
	Hold             *domain.Hold               `json:"hold"`
	Transaction      *domain.Transaction        `json:"transaction"`
	Conflict         *domain.ConflictResolution `json:"conflict,omitempty"`
	// ResolvedQuantity is the quantity actually held; it differs from the request on partial fulfillment
	ResolvedQuantity int    `json:"resolved_quantity"`
	Message          string `json:"message"`
}

// ReleaseHoldRequest carries an optional release reason
type ReleaseHoldRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ReleaseResult is returned by a successful release
type ReleaseResult struct {
	Success          bool                    `json:"success"`
	UpdatedInventory *domain.InventoryRecord `json:"updated_inventory"`
	Hold             *domain.Hold            `json:"hold"`
	Transaction      *domain.Transaction     `json:"transaction"`
	Message          string                  `json:"message"`
}

// PurchaseRequest represents a purchase, converting the session's hold when one exists
type PurchaseRequest struct {
	EventID      string `json:"event_id" binding:"required"`
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	SessionID    string `json:"session_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
}

// Validate validates the purchase request
func (r *PurchaseRequest) Validate() error {
	if r.EventID == "" {
		return domain.ErrInvalidEventID
	}
	if r.TicketTypeID == "" {
		return domain.ErrInvalidTicketTypeID
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

// PurchaseResult is returned by a successful purchase
type PurchaseResult struct {
	Success          bool                    `json:"success"`
	UpdatedInventory *domain.InventoryRecord `json:"updated_inventory"`
	Transaction      *domain.Transaction     `json:"transaction"`
	ConvertedHoldID  string                  `json:"converted_hold_id,omitempty"`
	Message          string                  `json:"message"`
}

// ProvisionInventoryRequest creates the inventory of a ticket type
type ProvisionInventoryRequest struct {
	EventID        string `json:"event_id" binding:"required"`
	TicketTypeID   string `json:"ticket_type_id" binding:"required"`
	TicketTypeName string `json:"ticket_type_name"`
	TotalQuantity  int    `json:"total_quantity" binding:"min=0"`
	SoldQuantity   int    `json:"sold_quantity" binding:"min=0"`
}

// ToDomain converts the request to a domain provision request
func (r *ProvisionInventoryRequest) ToDomain() *domain.ProvisionRequest {
	return &domain.ProvisionRequest{
		EventID:        r.EventID,
		TicketTypeID:   r.TicketTypeID,
		TicketTypeName: r.TicketTypeName,
		TotalQuantity:  r.TotalQuantity,
		SoldQuantity:   r.SoldQuantity,
	}
}

// TransactionQuery filters the audit log
type TransactionQuery struct {
	EventID      string `form:"event_id"`
	TicketTypeID string `form:"ticket_type_id"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// AlertQuery filters alerts
type AlertQuery struct {
	EventID string `form:"event_id"`
}

// EngineStats summarises engine and sweeper state for the stats endpoint
type EngineStats struct {
	LockAcquired    int64     `json:"lock_acquired"`
	LockContended   int64     `json:"lock_contended"`
	LockKeys        int       `json:"lock_keys"`
	Subscribers     []string  `json:"subscribers"`
	SweepRuns       int64     `json:"sweep_runs,omitempty"`
	HoldsExpired    int64     `json:"holds_expired,omitempty"`
	SweepSkipped    int64     `json:"sweep_skipped,omitempty"`
	LastSweepAt     time.Time `json:"last_sweep_at,omitempty"`
	RecordsPruned   int64     `json:"records_pruned,omitempty"`
	LastRetentionAt time.Time `json:"last_retention_at,omitempty"`
}
