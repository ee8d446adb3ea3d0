package domain

import (
	"fmt"
	"time"
)

// ResolutionType says how a request larger than availability was handled
type ResolutionType string

const (
	ResolutionPartialFulfill ResolutionType = "partial-fulfill"
	ResolutionDenyRequest    ResolutionType = "deny-request"
)

// ConflictResolution describes a request that exceeded availability. It is returned, never stored.
type ConflictResolution struct {
	ConflictID        string         `json:"conflict_id"`
	EventID           string         `json:"event_id"`
	TicketTypeID      string         `json:"ticket_type_id"`
	SessionID         string         `json:"session_id,omitempty"`
	RequestedQuantity int            `json:"requested_quantity"`
	AvailableQuantity int            `json:"available_quantity"`
	ResolutionType    ResolutionType `json:"resolution_type"`
	ResolvedQuantity  int            `json:"resolved_quantity"`
	Message           string         `json:"message"`
	Timestamp         time.Time      `json:"timestamp"`
}

// ResolveConflict decides between partial fulfilment and denial.
// Partial fulfilment needs allowPartial and at least one available unit.
func ResolveConflict(requested, available int, allowPartial bool) (ResolutionType, int, string) {
	if allowPartial && available > 0 {
		return ResolutionPartialFulfill, available,
			fmt.Sprintf("Only %d tickets available. Partial fulfillment offered.", available)
	}
	return ResolutionDenyRequest, 0, "Requested quantity not available"
}
