package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// InventoryRepository is the Inventory Record Store. Reads return copies;
// writes to one key must be serialized by the caller through the lock manager.
type InventoryRepository interface {
	// Create adds a new record, failing with ErrInventoryExists on a duplicate key
	Create(ctx context.Context, record *domain.InventoryRecord) error

	// Get returns a copy of the record or ErrTicketTypeNotFound
	Get(ctx context.Context, eventID, ticketTypeID string) (*domain.InventoryRecord, error)

	// Save replaces an existing record
	Save(ctx context.Context, record *domain.InventoryRecord) error

	// ListByEvent returns all ticket types of an event ordered by ticket type id
	ListByEvent(ctx context.Context, eventID string) ([]*domain.InventoryRecord, error)

	// List returns every record
	List(ctx context.Context) ([]*domain.InventoryRecord, error)
}

// HoldRepository is the Hold Ledger
type HoldRepository interface {
	// Save inserts or replaces a hold
	Save(ctx context.Context, hold *domain.Hold) error

	// Get returns a copy of the hold or ErrHoldNotFound
	Get(ctx context.Context, holdID string) (*domain.Hold, error)

	// ListActiveBySession returns active holds of a session for one key, oldest first
	ListActiveBySession(ctx context.Context, sessionID, eventID, ticketTypeID string) ([]*domain.Hold, error)

	// ListActiveByEvent returns active holds across all ticket types of an event
	ListActiveByEvent(ctx context.Context, eventID string) ([]*domain.Hold, error)

	// ListActiveByKey returns active holds of one ticket type
	ListActiveByKey(ctx context.Context, eventID, ticketTypeID string) ([]*domain.Hold, error)

	// ListDue returns active holds whose expiry is at or before now
	ListDue(ctx context.Context, now time.Time) ([]*domain.Hold, error)

	// PruneTerminated removes terminal holds released before cutoff
	PruneTerminated(ctx context.Context, cutoff time.Time) (int, error)
}

// TransactionFilter narrows a transaction query; empty fields match everything
type TransactionFilter struct {
	EventID      string
	TicketTypeID string
	Limit        int
}

// TransactionRepository is the append-only Transaction Log
type TransactionRepository interface {
	// Append adds an entry; entries are never modified
	Append(ctx context.Context, tx *domain.Transaction) error

	// List returns matching entries newest first
	List(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)

	// PruneBefore drops entries created before cutoff
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertRepository stores raised alerts
type AlertRepository interface {
	// Append adds an alert
	Append(ctx context.Context, alert *domain.Alert) error

	// List returns alerts newest first, optionally for one event
	List(ctx context.Context, eventID string) ([]*domain.Alert, error)

	// Acknowledge marks an alert acknowledged; acknowledging twice keeps the first operator
	Acknowledge(ctx context.Context, alertID, operator string, at time.Time) (*domain.Alert, error)

	// PruneBefore drops alerts raised before cutoff
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
