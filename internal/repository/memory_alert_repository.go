package repository

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// MemoryAlertRepository stores alerts in raise order
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts []*domain.Alert
	byID   map[string]*domain.Alert
}

// NewMemoryAlertRepository creates an empty alert store
func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{byID: make(map[string]*domain.Alert)}
}

// Append adds an alert
func (r *MemoryAlertRepository) Append(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := alert.Clone()
	r.alerts = append(r.alerts, stored)
	r.byID[stored.ID] = stored
	return nil
}

// List returns alerts newest first
func (r *MemoryAlertRepository) List(ctx context.Context, eventID string) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		if eventID == "" || r.alerts[i].EventID == eventID {
			out = append(out, r.alerts[i].Clone())
		}
	}
	return out, nil
}

// Acknowledge marks an alert acknowledged
func (r *MemoryAlertRepository) Acknowledge(ctx context.Context, alertID, operator string, at time.Time) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.byID[alertID]
	if !ok {
		return nil, domain.ErrAlertNotFound
	}
	if !alert.Acknowledged {
		alert.Acknowledged = true
		ackAt := at
		alert.AcknowledgedAt = &ackAt
		alert.AcknowledgedBy = operator
	}
	return alert.Clone(), nil
}

// PruneBefore drops alerts raised before cutoff
func (r *MemoryAlertRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*domain.Alert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		if alert.Timestamp.Before(cutoff) {
			delete(r.byID, alert.ID)
			continue
		}
		kept = append(kept, alert)
	}
	pruned := len(r.alerts) - len(kept)
	r.alerts = kept
	return pruned, nil
}
