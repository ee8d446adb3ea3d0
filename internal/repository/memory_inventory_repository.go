package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
)

// MemoryInventoryRepository implements InventoryRepository with a map
type MemoryInventoryRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.InventoryRecord
}

// NewMemoryInventoryRepository creates an empty store
func NewMemoryInventoryRepository() *MemoryInventoryRepository {
	return &MemoryInventoryRepository{records: make(map[string]*domain.InventoryRecord)}
}

// Create adds a new record
func (r *MemoryInventoryRepository) Create(ctx context.Context, record *domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := record.Key()
	if _, exists := r.records[key]; exists {
		return domain.ErrInventoryExists
	}
	r.records[key] = record.Clone()
	return nil
}

// Get returns a copy of the record
func (r *MemoryInventoryRepository) Get(ctx context.Context, eventID, ticketTypeID string) (*domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[domain.InventoryKey(eventID, ticketTypeID)]
	if !ok {
		return nil, domain.ErrTicketTypeNotFound
	}
	return record.Clone(), nil
}

// Save replaces an existing record
func (r *MemoryInventoryRepository) Save(ctx context.Context, record *domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := record.Key()
	if _, exists := r.records[key]; !exists {
		return domain.ErrTicketTypeNotFound
	}
	r.records[key] = record.Clone()
	return nil
}

// ListByEvent returns all ticket types of an event
func (r *MemoryInventoryRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.InventoryRecord
	for _, record := range r.records {
		if record.EventID == eventID {
			out = append(out, record.Clone())
		}
	}
	sortRecords(out)
	return out, nil
}

// List returns every record
func (r *MemoryInventoryRepository) List(ctx context.Context) ([]*domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.InventoryRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record.Clone())
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(records []*domain.InventoryRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].EventID != records[j].EventID {
			return records[i].EventID < records[j].EventID
		}
		return records[i].TicketTypeID < records[j].TicketTypeID
	})
}
