package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"go.uber.org/zap"
)

// runner drives a task on a fixed interval with a Start/Stop lifecycle.
// A stopped runner can be started again.
type runner struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	gen     uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newRunner(name string, interval time.Duration, log *logger.Logger, task func(ctx context.Context)) *runner {
	return &runner{name: name, interval: interval, task: task, log: log}
}

// Start runs the task immediately and then on every tick until Stop or ctx is done
func (r *runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("%s already running", r.name)
	}
	if r.interval <= 0 {
		return fmt.Errorf("%s interval must be positive", r.name)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.gen++
	gen := r.gen

	r.log.Info("Starting worker", zap.String("worker", r.name), zap.Duration("interval", r.interval))

	r.wg.Add(1)
	go r.loop(ctx, gen)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (r *runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.log.Info("Worker stopped", zap.String("worker", r.name))
}

// IsRunning reports whether the loop is active
func (r *runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *runner) loop(ctx context.Context, gen uint64) {
	defer r.wg.Done()
	defer r.finish(gen)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.task(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.task(ctx)
		}
	}
}

// finish marks the runner stopped when its parent context ended without Stop.
// A loop from an earlier Start never touches a newer generation.
func (r *runner) finish(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen || !r.running {
		return
	}
	r.running = false
	r.cancel()
	r.log.Info("Worker stopped by context", zap.String("worker", r.name))
}
