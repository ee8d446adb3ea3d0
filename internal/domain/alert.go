package domain

import (
	"fmt"
	"time"
)

// AlertType is the stock band that triggered an alert
type AlertType string

const (
	AlertLowStock      AlertType = "low-stock"
	AlertCriticalStock AlertType = "critical-stock"
	AlertSoldOut       AlertType = "sold-out"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Alert is raised after a mutation leaves a ticket type in a low band
type Alert struct {
	ID             string     `json:"id"`
	Type           AlertType  `json:"type"`
	EventID        string     `json:"event_id"`
	TicketTypeID   string     `json:"ticket_type_id"`
	Message        string     `json:"message"`
	Severity       Severity   `json:"severity"`
	Timestamp      time.Time  `json:"timestamp"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
}

// Clone returns a deep copy
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	return &c
}

// Thresholds configure the stock bands; CriticalStock < LowStock
type Thresholds struct {
	LowStock      int
	CriticalStock int
}

// AlertCandidate is the outcome of evaluating a record, before an id and timestamp are assigned
type AlertCandidate struct {
	Type     AlertType
	Severity Severity
	Message  string
}

// EvaluateAlert maps a post-mutation record to at most one alert
func EvaluateAlert(r *InventoryRecord, t Thresholds) (AlertCandidate, bool) {
	available := r.AvailableQuantity
	switch {
	case available == 0:
		return AlertCandidate{
			Type:     AlertSoldOut,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%s is now sold out", r.displayName()),
		}, true
	case available > 0 && available <= t.CriticalStock:
		return AlertCandidate{
			Type:     AlertCriticalStock,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%s is running low (%d left)", r.displayName(), available),
		}, true
	case available > t.CriticalStock && available <= t.LowStock:
		return AlertCandidate{
			Type:     AlertLowStock,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%s is running low (%d left)", r.displayName(), available),
		}, true
	}
	return AlertCandidate{}, false
}

func (r *InventoryRecord) displayName() string {
	if r.TicketTypeName != "" {
		return r.TicketTypeName
	}
	return r.TicketTypeID
}
