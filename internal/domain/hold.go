package domain

import (
	"time"
)

// MaxHoldDurationMinutes caps an explicit hold duration at one year
const MaxHoldDurationMinutes = 525600

// HoldType selects the default time-to-live of a hold
type HoldType string

const (
	HoldTypeCheckout     HoldType = "checkout"
	HoldTypeCashPending  HoldType = "cash-pending"
	HoldTypeAdminReserve HoldType = "admin-reserve"
)

// IsValid reports whether the hold type is known
func (t HoldType) IsValid() bool {
	switch t {
	case HoldTypeCheckout, HoldTypeCashPending, HoldTypeAdminReserve:
		return true
	}
	return false
}

// HoldStatus is the lifecycle state of a hold
type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusReleased  HoldStatus = "released"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusConverted HoldStatus = "converted"
)

// Hold is a time-bounded exclusive reservation against an inventory record.
// IsExpired is the terminal flag for every terminal state; Status says which one.
type Hold struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	TicketTypeID string     `json:"ticket_type_id"`
	Quantity     int        `json:"quantity"`
	SessionID    string     `json:"session_id"`
	UserID       string     `json:"user_id,omitempty"`
	HoldType     HoldType   `json:"hold_type"`
	Status       HoldStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsExpired    bool       `json:"is_expired"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
}

// Key returns the inventory key the hold reserves against
func (h *Hold) Key() string {
	return InventoryKey(h.EventID, h.TicketTypeID)
}

// IsActive reports whether the hold still reserves inventory
func (h *Hold) IsActive() bool {
	return !h.IsExpired
}

// IsDue reports whether an active hold has passed its expiry
func (h *Hold) IsDue(now time.Time) bool {
	return !h.IsExpired && !h.ExpiresAt.After(now)
}

// Terminate moves an active hold to a terminal status
func (h *Hold) Terminate(status HoldStatus, at time.Time) error {
	if h.IsExpired {
		return ErrAlreadyTerminal
	}
	h.IsExpired = true
	h.Status = status
	releasedAt := at
	h.ReleasedAt = &releasedAt
	return nil
}

// Clone returns a deep copy
func (h *Hold) Clone() *Hold {
	if h == nil {
		return nil
	}
	c := *h
	if h.ReleasedAt != nil {
		t := *h.ReleasedAt
		c.ReleasedAt = &t
	}
	return &c
}
