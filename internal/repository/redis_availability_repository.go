package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// availabilityKeyPrefix namespaces the mirrored hashes
const availabilityKeyPrefix = "inventory:availability:"

// HashClient is the subset of pkg/redis.Client the mirror needs
type HashClient interface {
	WriteHash(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// AvailabilitySnapshot is the mirrored view read by collaborators such as check-in
type AvailabilitySnapshot struct {
	EventID           string    `json:"event_id"`
	TicketTypeID      string    `json:"ticket_type_id"`
	TotalQuantity     int       `json:"total_quantity"`
	SoldQuantity      int       `json:"sold_quantity"`
	HeldQuantity      int       `json:"held_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	LastUpdated       time.Time `json:"last_updated"`
}

// RedisAvailabilityRepository mirrors inventory records into Redis hashes.
// It is a read model only; the in-memory store stays authoritative.
type RedisAvailabilityRepository struct {
	client HashClient
	ttl    time.Duration
}

// NewRedisAvailabilityRepository creates the mirror; ttl 0 keeps keys forever
func NewRedisAvailabilityRepository(client HashClient, ttl time.Duration) *RedisAvailabilityRepository {
	return &RedisAvailabilityRepository{client: client, ttl: ttl}
}

// AvailabilityKey returns the Redis key of a ticket type
func AvailabilityKey(eventID, ticketTypeID string) string {
	return availabilityKeyPrefix + eventID + ":" + ticketTypeID
}

// Write stores the record's counters
func (r *RedisAvailabilityRepository) Write(ctx context.Context, record *domain.InventoryRecord) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.write_availability")
	defer span.End()
	span.SetAttributes(attribute.String("inventory_key", record.Key()))

	fields := map[string]interface{}{
		"event_id":       record.EventID,
		"ticket_type_id": record.TicketTypeID,
		"total":          record.TotalQuantity,
		"sold":           record.SoldQuantity,
		"held":           record.HeldQuantity,
		"available":      record.AvailableQuantity,
		"last_updated":   record.LastUpdated.UnixMilli(),
	}
	if err := r.client.WriteHash(ctx, AvailabilityKey(record.EventID, record.TicketTypeID), fields, r.ttl); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// Read returns the mirrored snapshot or ErrTicketTypeNotFound when nothing was mirrored yet
func (r *RedisAvailabilityRepository) Read(ctx context.Context, eventID, ticketTypeID string) (*AvailabilitySnapshot, error) {
	values, err := r.client.HGetAll(ctx, AvailabilityKey(eventID, ticketTypeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read availability: %w", err)
	}
	if len(values) == 0 {
		return nil, domain.ErrTicketTypeNotFound
	}

	snap := &AvailabilitySnapshot{EventID: eventID, TicketTypeID: ticketTypeID}
	counters := map[string]*int{
		"total":     &snap.TotalQuantity,
		"sold":      &snap.SoldQuantity,
		"held":      &snap.HeldQuantity,
		"available": &snap.AvailableQuantity,
	}
	for field, dst := range counters {
		n, err := strconv.Atoi(values[field])
		if err != nil {
			return nil, fmt.Errorf("invalid %s in availability hash: %w", field, err)
		}
		*dst = n
	}
	if ms, err := strconv.ParseInt(values["last_updated"], 10, 64); err == nil {
		snap.LastUpdated = time.UnixMilli(ms).UTC()
	}
	return snap, nil
}
