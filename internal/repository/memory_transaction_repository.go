package repository

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// MemoryTransactionRepository is an append-only slice; insertion order is log order
type MemoryTransactionRepository struct {
	mu      sync.RWMutex
	entries []*domain.Transaction
}

// NewMemoryTransactionRepository creates an empty log
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{}
}

// Append adds an entry
func (r *MemoryTransactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	r.entries = append(r.entries, tx.Clone())
	r.mu.Unlock()
	return nil
}

// List returns matching entries newest first
func (r *MemoryTransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Transaction
	for i := len(r.entries) - 1; i >= 0; i-- {
		tx := r.entries[i]
		if filter.EventID != "" && tx.EventID != filter.EventID {
			continue
		}
		if filter.TicketTypeID != "" && tx.TicketTypeID != filter.TicketTypeID {
			continue
		}
		out = append(out, tx.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// PruneBefore drops entries created before cutoff
func (r *MemoryTransactionRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, tx := range r.entries {
		if !tx.CreatedAt.Before(cutoff) {
			kept = append(kept, tx)
		}
	}
	pruned := len(r.entries) - len(kept)
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
	return pruned, nil
}
