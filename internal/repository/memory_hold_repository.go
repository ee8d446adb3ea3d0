package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// MemoryHoldRepository implements HoldRepository with a primary map and a session index
type MemoryHoldRepository struct {
	mu        sync.RWMutex
	holds     map[string]*domain.Hold
	bySession map[string]map[string]struct{}
}

// NewMemoryHoldRepository creates an empty ledger
func NewMemoryHoldRepository() *MemoryHoldRepository {
	return &MemoryHoldRepository{
		holds:     make(map[string]*domain.Hold),
		bySession: make(map[string]map[string]struct{}),
	}
}

// Save inserts or replaces a hold
func (r *MemoryHoldRepository) Save(ctx context.Context, hold *domain.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.holds[hold.ID] = hold.Clone()
	if hold.SessionID != "" {
		ids, ok := r.bySession[hold.SessionID]
		if !ok {
			ids = make(map[string]struct{})
			r.bySession[hold.SessionID] = ids
		}
		ids[hold.ID] = struct{}{}
	}
	return nil
}

// Get returns a copy of the hold
func (r *MemoryHoldRepository) Get(ctx context.Context, holdID string) (*domain.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hold, ok := r.holds[holdID]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	return hold.Clone(), nil
}

// ListActiveBySession returns active holds of a session for one key, oldest first
func (r *MemoryHoldRepository) ListActiveBySession(ctx context.Context, sessionID, eventID, ticketTypeID string) ([]*domain.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Hold
	for id := range r.bySession[sessionID] {
		hold := r.holds[id]
		if hold != nil && hold.IsActive() && hold.EventID == eventID && hold.TicketTypeID == ticketTypeID {
			out = append(out, hold.Clone())
		}
	}
	sortHolds(out)
	return out, nil
}

// ListActiveByEvent returns active holds of an event
func (r *MemoryHoldRepository) ListActiveByEvent(ctx context.Context, eventID string) ([]*domain.Hold, error) {
	return r.filter(func(h *domain.Hold) bool {
		return h.IsActive() && h.EventID == eventID
	}), nil
}

// ListActiveByKey returns active holds of one ticket type
func (r *MemoryHoldRepository) ListActiveByKey(ctx context.Context, eventID, ticketTypeID string) ([]*domain.Hold, error) {
	return r.filter(func(h *domain.Hold) bool {
		return h.IsActive() && h.EventID == eventID && h.TicketTypeID == ticketTypeID
	}), nil
}

// ListDue returns active holds whose expiry is at or before now
func (r *MemoryHoldRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Hold, error) {
	return r.filter(func(h *domain.Hold) bool {
		return h.IsDue(now)
	}), nil
}

// PruneTerminated removes terminal holds released before cutoff
func (r *MemoryHoldRepository) PruneTerminated(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for id, hold := range r.holds {
		if !hold.IsExpired || hold.ReleasedAt == nil || !hold.ReleasedAt.Before(cutoff) {
			continue
		}
		delete(r.holds, id)
		if ids, ok := r.bySession[hold.SessionID]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(r.bySession, hold.SessionID)
			}
		}
		pruned++
	}
	return pruned, nil
}

func (r *MemoryHoldRepository) filter(match func(*domain.Hold) bool) []*domain.Hold {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Hold
	for _, hold := range r.holds {
		if match(hold) {
			out = append(out, hold.Clone())
		}
	}
	sortHolds(out)
	return out
}

func sortHolds(holds []*domain.Hold) {
	sort.Slice(holds, func(i, j int) bool {
		if !holds[i].CreatedAt.Equal(holds[j].CreatedAt) {
			return holds[i].CreatedAt.Before(holds[j].CreatedAt)
		}
		return holds[i].ID < holds[j].ID
	})
}
