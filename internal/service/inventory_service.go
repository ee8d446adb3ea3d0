package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/clock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/lock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/metrics"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/repository"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InventoryService defines the reservation engine operations
type InventoryService interface {
	// CreateHold reserves tickets for a checkout session, partially when allowed
	CreateHold(ctx context.Context, req *dto.CreateHoldRequest) (*dto.HoldResult, error)

	// ReleaseHold returns a hold's tickets to availability
	ReleaseHold(ctx context.Context, holdID, reason string) (*dto.ReleaseResult, error)

	// ExpireHold releases a hold whose expiry has passed
	ExpireHold(ctx context.Context, holdID string) (*dto.ReleaseResult, error)

	// ProcessPurchase converts the session's hold into a sale, or sells directly
	ProcessPurchase(ctx context.Context, req *dto.PurchaseRequest) (*dto.PurchaseResult, error)

	// ProvisionInventory creates the inventory record of a ticket type
	ProvisionInventory(ctx context.Context, req *domain.ProvisionRequest) (*domain.InventoryRecord, error)

	// GetInventoryStatus aggregates an event's ticket types; eventually consistent with in-flight mutations
	GetInventoryStatus(ctx context.Context, eventID string) (*domain.InventoryStatus, error)

	// GetTicketAvailabilityStatus derives the display status of a ticket type
	GetTicketAvailabilityStatus(ctx context.Context, eventID, ticketTypeID string) (*domain.TicketAvailability, error)

	// GetHold returns a hold by id
	GetHold(ctx context.Context, holdID string) (*domain.Hold, error)

	// GetTransactions returns audit entries newest first
	GetTransactions(ctx context.Context, query *dto.TransactionQuery) ([]*domain.Transaction, error)

	// GetAlerts returns alerts newest first
	GetAlerts(ctx context.Context, eventID string) ([]*domain.Alert, error)

	// AcknowledgeAlert marks an alert as handled by an operator
	AcknowledgeAlert(ctx context.Context, alertID, operator string) (*domain.Alert, error)

	// Stats returns lock and subscriber statistics
	Stats() *dto.EngineStats
}

// InventoryServiceConfig contains configuration for the reservation engine
type InventoryServiceConfig struct {
	CheckoutHoldDuration     time.Duration
	CashPendingHoldDuration  time.Duration
	AdminReserveHoldDuration time.Duration
	Thresholds               domain.Thresholds
	EnableConflictResolution bool
	EnablePartialFulfillment bool
	AlertSuppressionWindow   time.Duration
}

// DefaultInventoryServiceConfig returns the documented defaults
func DefaultInventoryServiceConfig() *InventoryServiceConfig {
	return &InventoryServiceConfig{
		CheckoutHoldDuration:     15 * time.Minute,
		CashPendingHoldDuration:  240 * time.Minute,
		AdminReserveHoldDuration: 1440 * time.Minute,
		Thresholds:               domain.Thresholds{LowStock: 10, CriticalStock: 5},
		EnableConflictResolution: true,
		EnablePartialFulfillment: true,
		AlertSuppressionWindow:   15 * time.Minute,
	}
}

// InventoryServiceDeps are the collaborators of the reservation engine
type InventoryServiceDeps struct {
	Inventory    repository.InventoryRepository
	Holds        repository.HoldRepository
	Transactions repository.TransactionRepository
	Alerts       repository.AlertRepository
	Locks        *lock.Manager
	Clock        clock.Clock
	Bus          *EventBus
	Logger       *logger.Logger
}

// ReservationEngine implements InventoryService. All mutations of one inventory key run
// under that key's lock; reads go straight to the stores.
type ReservationEngine struct {
	inventory    repository.InventoryRepository
	holds        repository.HoldRepository
	transactions repository.TransactionRepository
	locks        *lock.Manager
	clock        clock.Clock
	bus          *EventBus
	alerts       *AlertEmitter
	alertRepo    repository.AlertRepository
	log          *logger.Logger
	config       InventoryServiceConfig
}

// NewReservationEngine creates a reservation engine
func NewReservationEngine(deps InventoryServiceDeps, cfg *InventoryServiceConfig) *ReservationEngine {
	if cfg == nil {
		cfg = DefaultInventoryServiceConfig()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	locks := deps.Locks
	if locks == nil {
		locks = lock.NewManager(lock.Config{Policy: lock.FailFast})
	}
	bus := deps.Bus
	if bus == nil {
		bus = NewEventBus(nil)
	}
	log := deps.Logger
	if log == nil {
		log = logger.Get()
	}

	return &ReservationEngine{
		inventory:    deps.Inventory,
		holds:        deps.Holds,
		transactions: deps.Transactions,
		locks:        locks,
		clock:        clk,
		bus:          bus,
		alerts:       NewAlertEmitter(deps.Alerts, clk, cfg.Thresholds, cfg.AlertSuppressionWindow),
		alertRepo:    deps.Alerts,
		log:          log.Named("reservation-engine"),
		config:       *cfg,
	}
}

// Bus returns the engine's event bus
func (e *ReservationEngine) Bus() *EventBus {
	return e.bus
}

// GenerateSessionID returns a new checkout session id
func GenerateSessionID() string {
	return "session_" + uuid.New().String()
}

// CreateHold reserves tickets for a checkout session
func (e *ReservationEngine) CreateHold(ctx context.Context, req *dto.CreateHoldRequest) (*dto.HoldResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.create_hold")
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordOperationDuration(ctx, "create_hold", time.Since(start)) }()

	if req == nil {
		return nil, domain.ErrInvalidQuantity
	}
	if err := req.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = GenerateSessionID()
	}
	holdType := req.HoldType
	if holdType == "" {
		holdType = domain.HoldTypeCheckout
	}

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("ticket_type_id", req.TicketTypeID),
		attribute.String("session_id", sessionID),
		attribute.String("hold_type", string(holdType)),
		attribute.Int("quantity", req.Quantity),
	)

	// Unknown keys are rejected before a lock entry is created for them
	if err := e.requireRecord(ctx, req.EventID, req.TicketTypeID); err != nil {
		e.reject(ctx, "create_hold", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := domain.InventoryKey(req.EventID, req.TicketTypeID)
	release, err := e.acquire(ctx, "create_hold", key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	record, err := e.inventory.Get(ctx, req.EventID, req.TicketTypeID)
	if err != nil {
		e.reject(ctx, "create_hold", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := e.clock.Now()
	quantity := req.Quantity

	var conflict *domain.ConflictResolution
	if record.AvailableQuantity < quantity {
		conflict = e.resolveConflict(record, req.Quantity, sessionID, now)
		if conflict.ResolutionType == domain.ResolutionDenyRequest {
			err := domain.NewConflictError(conflict)
			e.reject(ctx, "create_hold", err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		quantity = conflict.ResolvedQuantity
	}

	hold := &domain.Hold{
		ID:           uuid.New().String(),
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     quantity,
		SessionID:    sessionID,
		UserID:       req.UserID,
		HoldType:     holdType,
		Status:       domain.HoldStatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(e.holdDuration(holdType, req.HoldDurationMinutes)),
	}

	previous := record.AvailableQuantity
	record.Hold(quantity, now)
	if err := record.CheckInvariants(); err != nil {
		return nil, e.internal(ctx, span, "create_hold", err)
	}

	tx := &domain.Transaction{
		ID:                uuid.New().String(),
		EventID:           req.EventID,
		TicketTypeID:      req.TicketTypeID,
		TransactionType:   domain.TransactionHoldCreate,
		Quantity:          quantity,
		PreviousAvailable: previous,
		NewAvailable:      record.AvailableQuantity,
		SessionID:         sessionID,
		UserID:            req.UserID,
		Reason:            fmt.Sprintf("Hold created for %s", holdType),
		CreatedAt:         now,
		Metadata: map[string]interface{}{
			domain.MetaHoldID:   hold.ID,
			domain.MetaHoldType: string(holdType),
		},
	}

	// The hold is rolled back if the record save fails
	if err := e.holds.Save(ctx, hold); err != nil {
		return nil, e.internal(ctx, span, "create_hold", fmt.Errorf("save hold: %w", err))
	}
	if err := e.inventory.Save(ctx, record); err != nil {
		e.rollbackHold(ctx, hold, now)
		return nil, e.internal(ctx, span, "create_hold", fmt.Errorf("save inventory: %w", err))
	}
	if err := e.transactions.Append(ctx, tx); err != nil {
		e.log.Error("Failed to append transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
	}

	alert := e.evaluateAlert(ctx, record)

	events := []*domain.InventoryEvent{
		e.newEvent(domain.EventInventoryUpdated, record, now, func(ev *domain.InventoryEvent) { ev.Transaction = tx.Clone() }),
		e.newEvent(domain.EventHoldCreated, record, now, func(ev *domain.InventoryEvent) { ev.Hold = hold.Clone() }),
	}
	if alert != nil {
		events = append(events, e.alertEvent(alert, record))
	}
	// Enqueued before unlock so subscribers see per-key events in transaction order
	e.bus.Publish(events...)

	metrics.RecordHoldCreated(ctx, req.EventID, req.TicketTypeID, quantity, conflict != nil)
	e.log.Info("Hold created",
		zap.String("hold_id", hold.ID),
		zap.String("inventory_key", key),
		zap.String("session_id", sessionID),
		zap.Int("requested", req.Quantity),
		zap.Int("held", quantity),
		zap.Int("available", record.AvailableQuantity),
	)

	return &dto.HoldResult{
		Success:          true,
		UpdatedInventory: record,
		Hold:             hold,
		Transaction:      tx,
		Conflict:         conflict,
		ResolvedQuantity: quantity,
		Message:          fmt.Sprintf("Hold created for %d tickets", quantity),
	}, nil
}

// ReleaseHold releases an active hold. Releasing a terminal hold fails with ErrAlreadyTerminal.
func (e *ReservationEngine) ReleaseHold(ctx context.Context, holdID, reason string) (*dto.ReleaseResult, error) {
	if reason == "" {
		reason = domain.ReasonHoldReleased
	}
	return e.release(ctx, "release_hold", holdID, reason, domain.HoldStatusReleased)
}

// ExpireHold releases a hold through the same path with the expired reason and status
func (e *ReservationEngine) ExpireHold(ctx context.Context, holdID string) (*dto.ReleaseResult, error) {
	return e.release(ctx, "expire_hold", holdID, domain.ReasonHoldExpired, domain.HoldStatusExpired)
}

func (e *ReservationEngine) release(ctx context.Context, op, holdID, reason string, status domain.HoldStatus) (*dto.ReleaseResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory."+op)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordOperationDuration(ctx, op, time.Since(start)) }()

	if holdID == "" {
		return nil, domain.ErrInvalidHoldID
	}
	span.SetAttributes(attribute.String("hold_id", holdID))

	// Unlocked read only to find the key; the hold is re-read under the lock
	hold, err := e.holds.Get(ctx, holdID)
	if err != nil {
		e.reject(ctx, op, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !hold.IsActive() {
		e.reject(ctx, op, domain.ErrAlreadyTerminal)
		telemetry.RecordError(span, domain.ErrAlreadyTerminal)
		return nil, domain.ErrAlreadyTerminal
	}

	key := hold.Key()
	span.SetAttributes(attribute.String("inventory_key", key))
	unlock, err := e.acquire(ctx, op, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	hold, err = e.holds.Get(ctx, holdID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	now := e.clock.Now()
	if err := hold.Terminate(status, now); err != nil {
		e.reject(ctx, op, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	record, err := e.inventory.Get(ctx, hold.EventID, hold.TicketTypeID)
	if err != nil {
		return nil, e.internal(ctx, span, op, fmt.Errorf("inventory missing for hold %s: %w", holdID, err))
	}

	previous := record.AvailableQuantity
	record.Release(hold.Quantity, now)
	if err := record.CheckInvariants(); err != nil {
		return nil, e.internal(ctx, span, op, err)
	}

	tx := &domain.Transaction{
		ID:                uuid.New().String(),
		EventID:           hold.EventID,
		TicketTypeID:      hold.TicketTypeID,
		TransactionType:   domain.TransactionHoldRelease,
		Quantity:          hold.Quantity,
		PreviousAvailable: previous,
		NewAvailable:      record.AvailableQuantity,
		SessionID:         hold.SessionID,
		UserID:            hold.UserID,
		Reason:            reason,
		CreatedAt:         now,
		Metadata: map[string]interface{}{
			domain.MetaHoldID:       hold.ID,
			domain.MetaHoldType:     string(hold.HoldType),
			domain.MetaReleaseCause: string(status),
		},
	}

	if err := e.inventory.Save(ctx, record); err != nil {
		return nil, e.internal(ctx, span, op, fmt.Errorf("save inventory: %w", err))
	}
	if err := e.holds.Save(ctx, hold); err != nil {
		// Undo the credit so the hold stays the only claim on these tickets
		record.Hold(hold.Quantity, now)
		if rbErr := e.inventory.Save(ctx, record); rbErr != nil {
			e.log.Error("Failed to roll back release", zap.String("hold_id", holdID), zap.Error(rbErr))
		}
		return nil, e.internal(ctx, span, op, fmt.Errorf("save hold: %w", err))
	}
	if err := e.transactions.Append(ctx, tx); err != nil {
		e.log.Error("Failed to append transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
	}

	e.bus.Publish(
		e.newEvent(domain.EventInventoryUpdated, record, now, func(ev *domain.InventoryEvent) { ev.Transaction = tx.Clone() }),
		e.newEvent(domain.EventHoldReleased, record, now, func(ev *domain.InventoryEvent) { ev.Hold = hold.Clone() }),
	)

	metrics.RecordHoldReleased(ctx, hold.EventID, hold.TicketTypeID, hold.Quantity, status == domain.HoldStatusExpired)
	e.log.Info("Hold released",
		zap.String("hold_id", hold.ID),
		zap.String("inventory_key", key),
		zap.String("status", string(status)),
		zap.Int("quantity", hold.Quantity),
		zap.Int("available", record.AvailableQuantity),
	)

	return &dto.ReleaseResult{
		Success:          true,
		UpdatedInventory: record,
		Hold:             hold,
		Transaction:      tx,
		Message:          fmt.Sprintf("Hold released for %d tickets", hold.Quantity),
	}, nil
}

// ProcessPurchase converts the session's matching hold into a sale, or sells directly
// from availability when the session holds nothing for this ticket type.
func (e *ReservationEngine) ProcessPurchase(ctx context.Context, req *dto.PurchaseRequest) (*dto.PurchaseResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.process_purchase")
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordOperationDuration(ctx, "process_purchase", time.Since(start)) }()

	if req == nil {
		return nil, domain.ErrInvalidQuantity
	}
	if err := req.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("ticket_type_id", req.TicketTypeID),
		attribute.String("session_id", req.SessionID),
		attribute.String("order_id", req.OrderID),
		attribute.Int("quantity", req.Quantity),
	)

	// Unknown keys are rejected before a lock entry is created for them
	if err := e.requireRecord(ctx, req.EventID, req.TicketTypeID); err != nil {
		e.reject(ctx, "process_purchase", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := domain.InventoryKey(req.EventID, req.TicketTypeID)
	release, err := e.acquire(ctx, "process_purchase", key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	record, err := e.inventory.Get(ctx, req.EventID, req.TicketTypeID)
	if err != nil {
		e.reject(ctx, "process_purchase", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	hold, err := e.findSessionHold(ctx, req)
	if err != nil {
		if domain.IsInternalError(err) {
			return nil, e.internal(ctx, span, "process_purchase", err)
		}
		e.reject(ctx, "process_purchase", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := e.clock.Now()
	previous := record.AvailableQuantity
	metadata := map[string]interface{}{}

	if hold != nil {
		if err := hold.Terminate(domain.HoldStatusConverted, now); err != nil {
			return nil, e.internal(ctx, span, "process_purchase", err)
		}
		record.ConvertHeld(req.Quantity, now)
		metadata[domain.MetaConvertedHoldID] = hold.ID
	} else {
		if record.AvailableQuantity < req.Quantity {
			resolution := &domain.ConflictResolution{
				ConflictID:        uuid.New().String(),
				EventID:           req.EventID,
				TicketTypeID:      req.TicketTypeID,
				SessionID:         req.SessionID,
				RequestedQuantity: req.Quantity,
				AvailableQuantity: record.AvailableQuantity,
				ResolutionType:    domain.ResolutionDenyRequest,
				Message:           "Insufficient inventory for direct purchase",
				Timestamp:         now,
			}
			err := domain.NewConflictError(resolution)
			e.reject(ctx, "process_purchase", err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		record.Sell(req.Quantity, now)
	}
	if err := record.CheckInvariants(); err != nil {
		return nil, e.internal(ctx, span, "process_purchase", err)
	}

	tx := &domain.Transaction{
		ID:                uuid.New().String(),
		EventID:           req.EventID,
		TicketTypeID:      req.TicketTypeID,
		TransactionType:   domain.TransactionPurchase,
		Quantity:          req.Quantity,
		PreviousAvailable: previous,
		NewAvailable:      record.AvailableQuantity,
		SessionID:         req.SessionID,
		UserID:            req.UserID,
		OrderID:           req.OrderID,
		Reason:            domain.ReasonPurchaseCompleted,
		CreatedAt:         now,
		Metadata:          metadata,
	}

	if err := e.inventory.Save(ctx, record); err != nil {
		return nil, e.internal(ctx, span, "process_purchase", fmt.Errorf("save inventory: %w", err))
	}
	if hold != nil {
		if err := e.holds.Save(ctx, hold); err != nil {
			record.SoldQuantity -= req.Quantity
			record.HeldQuantity += req.Quantity
			if rbErr := e.inventory.Save(ctx, record); rbErr != nil {
				e.log.Error("Failed to roll back conversion", zap.String("hold_id", hold.ID), zap.Error(rbErr))
			}
			return nil, e.internal(ctx, span, "process_purchase", fmt.Errorf("save hold: %w", err))
		}
	}
	if err := e.transactions.Append(ctx, tx); err != nil {
		e.log.Error("Failed to append transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
	}

	alert := e.evaluateAlert(ctx, record)

	events := []*domain.InventoryEvent{
		e.newEvent(domain.EventInventoryUpdated, record, now, func(ev *domain.InventoryEvent) { ev.Transaction = tx.Clone() }),
		e.newEvent(domain.EventPurchaseCompleted, record, now, func(ev *domain.InventoryEvent) {
			ev.Transaction = tx.Clone()
			ev.Hold = hold.Clone()
		}),
	}
	if alert != nil {
		events = append(events, e.alertEvent(alert, record))
	}
	e.bus.Publish(events...)

	result := &dto.PurchaseResult{
		Success:          true,
		UpdatedInventory: record,
		Transaction:      tx,
		Message:          fmt.Sprintf("Purchase completed for %d tickets", req.Quantity),
	}
	if hold != nil {
		result.ConvertedHoldID = hold.ID
	}

	metrics.RecordPurchase(ctx, req.EventID, req.TicketTypeID, req.Quantity, hold != nil)
	e.log.Info("Purchase completed",
		zap.String("inventory_key", key),
		zap.String("order_id", req.OrderID),
		zap.String("converted_hold_id", result.ConvertedHoldID),
		zap.Int("quantity", req.Quantity),
		zap.Int("available", record.AvailableQuantity),
	)
	return result, nil
}

// findSessionHold picks the oldest active hold of the session whose quantity matches.
// Holds exist but none match: ErrQuantityMismatch. No session or no holds: nil, direct purchase.
func (e *ReservationEngine) findSessionHold(ctx context.Context, req *dto.PurchaseRequest) (*domain.Hold, error) {
	if req.SessionID == "" {
		return nil, nil
	}
	holds, err := e.holds.ListActiveBySession(ctx, req.SessionID, req.EventID, req.TicketTypeID)
	if err != nil {
		return nil, domain.InternalError("list session holds: %v", err)
	}
	if len(holds) == 0 {
		return nil, nil
	}
	for _, h := range holds {
		if h.Quantity == req.Quantity {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: held %d, requested %d", domain.ErrQuantityMismatch, holds[0].Quantity, req.Quantity)
}

// ProvisionInventory creates a ticket type's record at event setup
func (e *ReservationEngine) ProvisionInventory(ctx context.Context, req *domain.ProvisionRequest) (*domain.InventoryRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.provision")
	defer span.End()

	if req == nil {
		return nil, domain.ErrInvalidEventID
	}
	if err := req.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("ticket_type_id", req.TicketTypeID),
		attribute.Int("total_quantity", req.TotalQuantity),
	)

	key := domain.InventoryKey(req.EventID, req.TicketTypeID)
	release, err := e.acquire(ctx, "provision", key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	now := e.clock.Now()
	record := domain.NewInventoryRecord(req.EventID, req.TicketTypeID, req.TicketTypeName, req.TotalQuantity, req.SoldQuantity, now)
	if err := e.inventory.Create(ctx, record); err != nil {
		e.reject(ctx, "provision", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	e.bus.Publish(e.newEvent(domain.EventInventoryUpdated, record, now, nil))
	e.log.Info("Inventory provisioned",
		zap.String("inventory_key", key),
		zap.Int("total", record.TotalQuantity),
		zap.Int("sold", record.SoldQuantity),
	)
	return record, nil
}

// GetInventoryStatus aggregates every ticket type of an event without taking locks
func (e *ReservationEngine) GetInventoryStatus(ctx context.Context, eventID string) (*domain.InventoryStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.get_status")
	defer span.End()

	if eventID == "" {
		return nil, domain.ErrInvalidEventID
	}
	records, err := e.inventory.ListByEvent(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrTicketTypeNotFound
	}
	holds, err := e.holds.ListActiveByEvent(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	status := &domain.InventoryStatus{
		EventID:     eventID,
		TicketTypes: records,
		ActiveHolds: holds,
	}
	for _, r := range records {
		status.TotalTickets += r.TotalQuantity
		status.TotalSold += r.SoldQuantity
		status.TotalHeld += r.HeldQuantity
		status.TotalAvailable += r.AvailableQuantity
		if r.LastUpdated.After(status.LastUpdated) {
			status.LastUpdated = r.LastUpdated
		}
	}
	return status, nil
}

// GetTicketAvailabilityStatus derives display availability; an unknown ticket type is coming soon
func (e *ReservationEngine) GetTicketAvailabilityStatus(ctx context.Context, eventID, ticketTypeID string) (*domain.TicketAvailability, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidEventID
	}
	if ticketTypeID == "" {
		return nil, domain.ErrInvalidTicketTypeID
	}

	record, err := e.inventory.Get(ctx, eventID, ticketTypeID)
	if err != nil && !errors.Is(err, domain.ErrTicketTypeNotFound) {
		return nil, err
	}
	availability := domain.DeriveAvailability(record, e.alerts.Thresholds())
	return &availability, nil
}

// GetHold returns a hold by id
func (e *ReservationEngine) GetHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	if holdID == "" {
		return nil, domain.ErrInvalidHoldID
	}
	return e.holds.Get(ctx, holdID)
}

// GetTransactions returns audit entries newest first
func (e *ReservationEngine) GetTransactions(ctx context.Context, query *dto.TransactionQuery) ([]*domain.Transaction, error) {
	filter := repository.TransactionFilter{}
	if query != nil {
		filter.EventID = query.EventID
		filter.TicketTypeID = query.TicketTypeID
		filter.Limit = query.Limit
	}
	return e.transactions.List(ctx, filter)
}

// GetAlerts returns alerts newest first, optionally for one event
func (e *ReservationEngine) GetAlerts(ctx context.Context, eventID string) ([]*domain.Alert, error) {
	return e.alertRepo.List(ctx, eventID)
}

// AcknowledgeAlert marks an alert as acknowledged by an operator
func (e *ReservationEngine) AcknowledgeAlert(ctx context.Context, alertID, operator string) (*domain.Alert, error) {
	if alertID == "" {
		return nil, domain.ErrAlertNotFound
	}
	alert, err := e.alertRepo.Acknowledge(ctx, alertID, operator, e.clock.Now())
	if err != nil {
		return nil, err
	}
	e.log.Info("Alert acknowledged", zap.String("alert_id", alertID), zap.String("operator", operator))
	return alert, nil
}

// CheckConsistency verifies every record's counters and that held quantity equals
// the sum of its active holds. It reads without locks, so run it on a quiesced engine.
func (e *ReservationEngine) CheckConsistency(ctx context.Context) error {
	records, err := e.inventory.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := r.CheckInvariants(); err != nil {
			return err
		}
		holds, err := e.holds.ListActiveByKey(ctx, r.EventID, r.TicketTypeID)
		if err != nil {
			return err
		}
		held := 0
		for _, h := range holds {
			held += h.Quantity
		}
		if held != r.HeldQuantity {
			return domain.InternalError("held quantity drift on %s: record=%d holds=%d", r.Key(), r.HeldQuantity, held)
		}
	}
	return nil
}

// Stats returns lock and subscriber statistics
func (e *ReservationEngine) Stats() *dto.EngineStats {
	ls := e.locks.Stats()
	return &dto.EngineStats{
		LockAcquired:  ls.Acquired,
		LockContended: ls.Contended,
		LockKeys:      ls.Keys,
		Subscribers:   e.bus.Subscribers(),
	}
}

// requireRecord checks existence without the lock; records are never deleted,
// so the locked re-read that follows cannot miss.
func (e *ReservationEngine) requireRecord(ctx context.Context, eventID, ticketTypeID string) error {
	_, err := e.inventory.Get(ctx, eventID, ticketTypeID)
	return err
}

func (e *ReservationEngine) acquire(ctx context.Context, op, key string) (func(), error) {
	release, err := e.locks.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrOperationInProgress) {
			metrics.RecordLockContention(ctx, op)
			e.log.Debug("Inventory key busy", zap.String("operation", op), zap.String("inventory_key", key))
		}
		return nil, err
	}
	return release, nil
}

func (e *ReservationEngine) holdDuration(holdType domain.HoldType, minutes *int) time.Duration {
	if minutes != nil {
		// Validate caps minutes at MaxHoldDurationMinutes, well inside time.Duration's range
		return time.Duration(*minutes) * time.Minute
	}
	switch holdType {
	case domain.HoldTypeCashPending:
		return e.config.CashPendingHoldDuration
	case domain.HoldTypeAdminReserve:
		return e.config.AdminReserveHoldDuration
	default:
		return e.config.CheckoutHoldDuration
	}
}

// resolveConflict builds the resolution for a request above availability; the request is left untouched
func (e *ReservationEngine) resolveConflict(record *domain.InventoryRecord, requested int, sessionID string, now time.Time) *domain.ConflictResolution {
	allowPartial := e.config.EnableConflictResolution && e.config.EnablePartialFulfillment
	resolution, resolved, message := domain.ResolveConflict(requested, record.AvailableQuantity, allowPartial)
	return &domain.ConflictResolution{
		ConflictID:        uuid.New().String(),
		EventID:           record.EventID,
		TicketTypeID:      record.TicketTypeID,
		SessionID:         sessionID,
		RequestedQuantity: requested,
		AvailableQuantity: record.AvailableQuantity,
		ResolutionType:    resolution,
		ResolvedQuantity:  resolved,
		Message:           message,
		Timestamp:         now,
	}
}

func (e *ReservationEngine) rollbackHold(ctx context.Context, hold *domain.Hold, now time.Time) {
	if err := hold.Terminate(domain.HoldStatusReleased, now); err != nil {
		return
	}
	if err := e.holds.Save(ctx, hold); err != nil {
		e.log.Error("Failed to roll back hold", zap.String("hold_id", hold.ID), zap.Error(err))
	}
}

func (e *ReservationEngine) evaluateAlert(ctx context.Context, record *domain.InventoryRecord) *domain.Alert {
	alert, err := e.alerts.Evaluate(ctx, record)
	if err != nil {
		e.log.Error("Failed to raise alert", zap.String("inventory_key", record.Key()), zap.Error(err))
		return nil
	}
	if alert != nil {
		e.log.Warn("Stock alert raised",
			zap.String("alert_id", alert.ID),
			zap.String("type", string(alert.Type)),
			zap.String("inventory_key", record.Key()),
			zap.Int("available", record.AvailableQuantity),
		)
	}
	return alert
}

func (e *ReservationEngine) newEvent(t domain.EventType, record *domain.InventoryRecord, now time.Time, fill func(*domain.InventoryEvent)) *domain.InventoryEvent {
	ev := &domain.InventoryEvent{
		ID:           uuid.New().String(),
		Type:         t,
		OccurredAt:   now,
		EventID:      record.EventID,
		TicketTypeID: record.TicketTypeID,
		Inventory:    record.Clone(),
	}
	if fill != nil {
		fill(ev)
	}
	return ev
}

func (e *ReservationEngine) alertEvent(alert *domain.Alert, record *domain.InventoryRecord) *domain.InventoryEvent {
	return e.newEvent(domain.EventAlertCreated, record, alert.Timestamp, func(ev *domain.InventoryEvent) { ev.Alert = alert.Clone() })
}

func (e *ReservationEngine) reject(ctx context.Context, op string, err error) {
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrInsufficientInventory):
		reason = "insufficient_inventory"
	case errors.Is(err, domain.ErrTicketTypeNotFound):
		reason = "ticket_type_not_found"
	case errors.Is(err, domain.ErrHoldNotFound):
		reason = "hold_not_found"
	case errors.Is(err, domain.ErrAlreadyTerminal):
		reason = "already_terminal"
	case errors.Is(err, domain.ErrQuantityMismatch):
		reason = "quantity_mismatch"
	case errors.Is(err, domain.ErrInventoryExists):
		reason = "inventory_exists"
	}
	metrics.RecordRejected(ctx, op, reason)
	e.log.Info("Operation rejected", zap.String("operation", op), zap.String("reason", reason), zap.Error(err))
}

func (e *ReservationEngine) internal(ctx context.Context, span trace.Span, op string, err error) error {
	if !domain.IsInternalError(err) {
		err = fmt.Errorf("%w: %s: %w", domain.ErrInternal, op, err)
	}
	telemetry.RecordError(span, err)
	metrics.RecordRejected(ctx, op, "internal")
	e.log.Error("Inventory operation failed", zap.String("operation", op), zap.Error(err))
	return err
}
