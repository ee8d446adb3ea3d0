package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/clock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/metrics"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/repository"
)

const alertSuppressionEntries = 4096

// AlertEmitter turns post-mutation records into stored alerts.
//
// Suppression: the emitter remembers the last alert raised per key. A new alert is dropped
// when it has the same type as that last alert and the last one was raised less than window
// ago, measured on the engine clock. Any band change (low to critical, or back) raises.
// A zero window disables suppression.
// The LRU only bounds memory; its own TTL uses wall time and merely evicts stale entries.
type AlertEmitter struct {
	thresholds domain.Thresholds
	alerts     repository.AlertRepository
	clock      clock.Clock
	window     time.Duration
	recent     *expirable.LRU[string, raisedAlert]
}

type raisedAlert struct {
	alertType domain.AlertType
	at        time.Time
}

// NewAlertEmitter creates an alert emitter
func NewAlertEmitter(alerts repository.AlertRepository, clk clock.Clock, thresholds domain.Thresholds, window time.Duration) *AlertEmitter {
	e := &AlertEmitter{
		thresholds: thresholds,
		alerts:     alerts,
		clock:      clk,
		window:     window,
	}
	if window > 0 {
		e.recent = expirable.NewLRU[string, raisedAlert](alertSuppressionEntries, nil, window)
	}
	return e
}

// Thresholds returns the configured stock bands
func (e *AlertEmitter) Thresholds() domain.Thresholds {
	return e.thresholds
}

// Evaluate stores and returns the alert the record qualifies for, or nil.
// Callers hold the record's lock, so evaluations of one key never interleave.
func (e *AlertEmitter) Evaluate(ctx context.Context, record *domain.InventoryRecord) (*domain.Alert, error) {
	candidate, ok := domain.EvaluateAlert(record, e.thresholds)
	if !ok {
		return nil, nil
	}

	now := e.clock.Now()
	if e.suppressed(candidate.Type, record.Key(), now) {
		metrics.RecordAlert(ctx, string(candidate.Type), true)
		return nil, nil
	}

	alert := &domain.Alert{
		ID:           uuid.New().String(),
		Type:         candidate.Type,
		EventID:      record.EventID,
		TicketTypeID: record.TicketTypeID,
		Message:      candidate.Message,
		Severity:     candidate.Severity,
		Timestamp:    now,
	}
	if err := e.alerts.Append(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to store alert: %w", err)
	}

	if e.recent != nil {
		e.recent.Add(record.Key(), raisedAlert{alertType: candidate.Type, at: now})
	}
	metrics.RecordAlert(ctx, string(candidate.Type), false)
	return alert.Clone(), nil
}

func (e *AlertEmitter) suppressed(alertType domain.AlertType, key string, now time.Time) bool {
	if e.recent == nil {
		return false
	}
	last, ok := e.recent.Get(key)
	return ok && last.alertType == alertType && now.Sub(last.at) < e.window
}
