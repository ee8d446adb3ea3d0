package domain

import "time"

// TransactionType classifies a change of available quantity
type TransactionType string

const (
	TransactionHoldCreate  TransactionType = "hold-create"
	TransactionHoldRelease TransactionType = "hold-release"
	TransactionPurchase    TransactionType = "purchase"
)

// Transaction is an immutable audit entry of one availability change
type Transaction struct {
	ID                string                 `json:"id"`
	EventID           string                 `json:"event_id"`
	TicketTypeID      string                 `json:"ticket_type_id"`
	TransactionType   TransactionType        `json:"transaction_type"`
	Quantity          int                    `json:"quantity"`
	PreviousAvailable int                    `json:"previous_available"`
	NewAvailable      int                    `json:"new_available"`
	SessionID         string                 `json:"session_id,omitempty"`
	UserID            string                 `json:"user_id,omitempty"`
	OrderID           string                 `json:"order_id,omitempty"`
	Reason            string                 `json:"reason"`
	CreatedAt         time.Time              `json:"created_at"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Transaction reasons
const (
	ReasonHoldReleased      = "Hold released"
	ReasonHoldExpired       = "expired"
	ReasonPurchaseCompleted = "Ticket purchase completed"
)

// Metadata keys
const (
	MetaHoldID          = "hold_id"
	MetaHoldType        = "hold_type"
	MetaConvertedHoldID = "converted_hold_id"
	MetaReleaseCause    = "release_cause"
)

// Clone returns a copy with its own metadata map
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
