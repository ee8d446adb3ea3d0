package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/clock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/metrics"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HoldExpirer releases one hold with the expired reason; satisfied by service.ReservationEngine
type HoldExpirer interface {
	ExpireHold(ctx context.Context, holdID string) (*dto.ReleaseResult, error)
}

// DueHoldLister finds holds past their expiry; satisfied by repository.HoldRepository
type DueHoldLister interface {
	ListDue(ctx context.Context, now time.Time) ([]*domain.Hold, error)
}

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// SweepInterval is the interval between sweeps
	SweepInterval time.Duration
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		SweepInterval: 60 * time.Second,
	}
}

// SweepResult summarises one sweep
type SweepResult struct {
	Due     int `json:"due"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExpiryWorker releases holds whose expiry has passed. Each hold is released through
// its own locked engine call, so a busy key never blocks sweeping of other keys;
// a busy key's hold is retried on the next sweep.
type ExpiryWorker struct {
	*runner

	engine HoldExpirer
	holds  DueHoldLister
	clock  clock.Clock
	log    *logger.Logger

	mu           sync.Mutex
	totalRuns    int64
	totalExpired int64
	totalSkipped int64
	lastSweepAt  time.Time
	lastResult   SweepResult
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(engine HoldExpirer, holds DueHoldLister, clk clock.Clock, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	log := logger.Get().Named("expiry-worker")
	w := &ExpiryWorker{
		engine: engine,
		holds:  holds,
		clock:  clk,
		log:    log,
	}
	w.runner = newRunner("expiry worker", config.SweepInterval, log, func(ctx context.Context) {
		w.SweepOnce(ctx)
	})
	return w
}

// SweepOnce releases every hold that is due now
func (w *ExpiryWorker) SweepOnce(ctx context.Context) SweepResult {
	ctx, span := telemetry.StartSpan(ctx, "worker.expiry.sweep")
	defer span.End()
	start := time.Now()

	now := w.clock.Now()
	var result SweepResult

	due, err := w.holds.ListDue(ctx, now)
	if err != nil {
		telemetry.RecordError(span, err)
		w.log.Error("Failed to list due holds", zap.Error(err))
		return result
	}
	result.Due = len(due)

	for _, hold := range due {
		if ctx.Err() != nil {
			break
		}
		_, err := w.engine.ExpireHold(ctx, hold.ID)
		switch {
		case err == nil:
			result.Expired++
		case errors.Is(err, domain.ErrOperationInProgress):
			result.Skipped++
		case errors.Is(err, domain.ErrAlreadyTerminal), errors.Is(err, domain.ErrHoldNotFound):
			// Released or converted since it was listed
		default:
			result.Failed++
			w.log.Error("Failed to expire hold", zap.String("hold_id", hold.ID), zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("due", result.Due),
		attribute.Int("expired", result.Expired),
		attribute.Int("skipped", result.Skipped),
	)
	metrics.RecordSweep(ctx, time.Since(start))

	w.mu.Lock()
	w.totalRuns++
	w.totalExpired += int64(result.Expired)
	w.totalSkipped += int64(result.Skipped)
	w.lastSweepAt = now
	w.lastResult = result
	w.mu.Unlock()

	if result.Due > 0 {
		w.log.Info("Expired holds swept",
			zap.Int("due", result.Due),
			zap.Int("expired", result.Expired),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	running := w.IsRunning()

	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryWorkerStats{
		IsRunning:    running,
		TotalRuns:    w.totalRuns,
		TotalExpired: w.totalExpired,
		TotalSkipped: w.totalSkipped,
		LastSweepAt:  w.lastSweepAt,
		LastResult:   w.lastResult,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning    bool        `json:"is_running"`
	TotalRuns    int64       `json:"total_runs"`
	TotalExpired int64       `json:"total_expired"`
	TotalSkipped int64       `json:"total_skipped"`
	LastSweepAt  time.Time   `json:"last_sweep_at"`
	LastResult   SweepResult `json:"last_result"`
}
