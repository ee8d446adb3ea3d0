package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/clock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"go.uber.org/zap"
)

// Pruner drops entries older than cutoff and reports how many were removed
type Pruner func(ctx context.Context, cutoff time.Time) (int, error)

// RetentionWorkerConfig contains configuration for the audit retention worker
type RetentionWorkerConfig struct {
	// Retention is how long history is kept
	Retention time.Duration
	// Interval is the time between prune runs
	Interval time.Duration
}

// DefaultRetentionWorkerConfig keeps 90 days and prunes hourly
func DefaultRetentionWorkerConfig() *RetentionWorkerConfig {
	return &RetentionWorkerConfig{
		Retention: 90 * 24 * time.Hour,
		Interval:  time.Hour,
	}
}

// RetentionWorker prunes transaction, alert and terminal hold history past the retention period.
// Inventory records are never pruned.
type RetentionWorker struct {
	*runner

	pruners   map[string]Pruner
	retention time.Duration
	clock     clock.Clock
	log       *logger.Logger

	mu          sync.Mutex
	totalPruned int64
	lastRunAt   time.Time
}

// NewRetentionWorker creates a retention worker; pruners are keyed by a name used in logs
func NewRetentionWorker(pruners map[string]Pruner, clk clock.Clock, config *RetentionWorkerConfig) *RetentionWorker {
	if config == nil {
		config = DefaultRetentionWorkerConfig()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	log := logger.Get().Named("retention-worker")
	w := &RetentionWorker{
		pruners:   pruners,
		retention: config.Retention,
		clock:     clk,
		log:       log,
	}
	w.runner = newRunner("retention worker", config.Interval, log, func(ctx context.Context) {
		w.PruneOnce(ctx)
	})
	return w
}

// PruneOnce runs every pruner once and returns the removed count per pruner
func (w *RetentionWorker) PruneOnce(ctx context.Context) map[string]int {
	now := w.clock.Now()
	cutoff := now.Add(-w.retention)
	out := make(map[string]int, len(w.pruners))

	total := 0
	for name, prune := range w.pruners {
		n, err := prune(ctx, cutoff)
		if err != nil {
			w.log.Error("Failed to prune history", zap.String("store", name), zap.Error(err))
			continue
		}
		out[name] = n
		total += n
	}

	w.mu.Lock()
	w.totalPruned += int64(total)
	w.lastRunAt = now
	w.mu.Unlock()

	if total > 0 {
		w.log.Info("Pruned audit history", zap.Time("cutoff", cutoff), zap.Any("removed", out))
	}
	return out
}

// GetStats returns worker statistics
func (w *RetentionWorker) GetStats() *RetentionWorkerStats {
	running := w.IsRunning()

	w.mu.Lock()
	defer w.mu.Unlock()
	return &RetentionWorkerStats{
		IsRunning:   running,
		TotalPruned: w.totalPruned,
		LastRunAt:   w.lastRunAt,
	}
}

// RetentionWorkerStats contains worker statistics
type RetentionWorkerStats struct {
	IsRunning   bool      `json:"is_running"`
	TotalPruned int64     `json:"total_pruned"`
	LastRunAt   time.Time `json:"last_run_at"`
}
