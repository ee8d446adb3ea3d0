package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"golang.org/x/sync/semaphore"
)

// Policy decides what a caller does when the key is already held
type Policy int

const (
	// FailFast returns ErrOperationInProgress immediately on contention
	FailFast Policy = iota
	// BoundedWait waits up to the configured timeout, then returns ErrOperationInProgress
	BoundedWait
)

// Config holds lock manager settings
type Config struct {
	Policy      Policy
	WaitTimeout time.Duration
}

// Stats counts lock outcomes since start
type Stats struct {
	Acquired  int64 `json:"acquired"`
	Contended int64 `json:"contended"`
	Keys      int   `json:"keys"`
}

// Manager grants per-key mutual exclusion. One weighted semaphore of size 1 backs each key;
// entries are never evicted, so callers only acquire keys of provisioned inventory records.
type Manager struct {
	config Config

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted

	acquired  atomic.Int64
	contended atomic.Int64
}

// NewManager creates a lock manager
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
		sems:   make(map[string]*semaphore.Weighted),
	}
}

func (m *Manager) semaphore(key string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		m.sems[key] = sem
	}
	return sem
}

// Acquire takes the lock for key. The returned release func must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	sem := m.semaphore(key)

	if sem.TryAcquire(1) {
		return m.granted(sem), nil
	}

	if m.config.Policy == BoundedWait && m.config.WaitTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, m.config.WaitTimeout)
		defer cancel()
		err := sem.Acquire(waitCtx, 1)
		if err == nil {
			return m.granted(sem), nil
		}
		// Caller cancellation is not contention
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	m.contended.Add(1)
	return nil, domain.ErrOperationInProgress
}

func (m *Manager) granted(sem *semaphore.Weighted) func() {
	m.acquired.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}
}

// Stats returns lock counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	keys := len(m.sems)
	m.mu.Unlock()
	return Stats{
		Acquired:  m.acquired.Load(),
		Contended: m.contended.Load(),
		Keys:      keys,
	}
}
