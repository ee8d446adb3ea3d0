package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/clock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/lock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	engine *ReservationEngine
	clock  *clock.Manual
	locks  *lock.Manager
	bus    *EventBus
	events *eventRecorder
}

func newFixture(t *testing.T, cfg *InventoryServiceConfig) *fixture {
	t.Helper()

	clk := clock.NewManual(baseTime)
	locks := lock.NewManager(lock.Config{Policy: lock.FailFast})
	bus := NewEventBus(nil)
	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	events := &eventRecorder{}
	require.NoError(t, bus.Subscribe("recorder", events.handle))

	engine := NewReservationEngine(InventoryServiceDeps{
		Inventory:    repository.NewMemoryInventoryRepository(),
		Holds:        repository.NewMemoryHoldRepository(),
		Transactions: repository.NewMemoryTransactionRepository(),
		Alerts:       repository.NewMemoryAlertRepository(),
		Locks:        locks,
		Clock:        clk,
		Bus:          bus,
	}, cfg)

	return &fixture{engine: engine, clock: clk, locks: locks, bus: bus, events: events}
}

func (f *fixture) provision(t *testing.T, eventID, ticketTypeID string, total, sold int) {
	t.Helper()
	_, err := f.engine.ProvisionInventory(context.Background(), &domain.ProvisionRequest{
		EventID:        eventID,
		TicketTypeID:   ticketTypeID,
		TicketTypeName: strings.ToUpper(ticketTypeID),
		TotalQuantity:  total,
		SoldQuantity:   sold,
	})
	require.NoError(t, err)
}

func (f *fixture) record(t *testing.T, eventID, ticketTypeID string) *domain.InventoryRecord {
	t.Helper()
	r, err := f.engine.inventory.Get(context.Background(), eventID, ticketTypeID)
	require.NoError(t, err)
	return r
}

func (f *fixture) transactionCount(t *testing.T) int {
	t.Helper()
	txs, err := f.engine.GetTransactions(context.Background(), nil)
	require.NoError(t, err)
	return len(txs)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*domain.InventoryEvent
}

func (r *eventRecorder) handle(_ context.Context, ev *domain.InventoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func intPtr(v int) *int { return &v }

func createHoldRetrying(ctx context.Context, e *ReservationEngine, req dto.CreateHoldRequest) (*dto.HoldResult, error) {
	for {
		res, err := e.CreateHold(ctx, &req)
		if errors.Is(err, domain.ErrOperationInProgress) {
			runtime.Gosched()
			continue
		}
		return res, err
	}
}

func purchaseRetrying(ctx context.Context, e *ReservationEngine, req dto.PurchaseRequest) (*dto.PurchaseResult, error) {
	for {
		res, err := e.ProcessPurchase(ctx, &req)
		if errors.Is(err, domain.ErrOperationInProgress) {
			runtime.Gosched()
			continue
		}
		return res, err
	}
}

func TestCreateHold_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)

	res, err := f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
		EventID:      "concert-1",
		TicketTypeID: "ga",
		Quantity:     4,
		UserID:       "user-1",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Nil(t, res.Conflict)
	assert.Equal(t, 4, res.ResolvedQuantity)
	assert.Equal(t, "Hold created for 4 tickets", res.Message)

	assert.Equal(t, 4, res.Hold.Quantity)
	assert.True(t, strings.HasPrefix(res.Hold.SessionID, "session_"))
	assert.Equal(t, domain.HoldTypeCheckout, res.Hold.HoldType)
	assert.Equal(t, domain.HoldStatusActive, res.Hold.Status)
	assert.False(t, res.Hold.IsExpired)
	assert.Equal(t, baseTime.Add(15*time.Minute), res.Hold.ExpiresAt)

	assert.Equal(t, 6, res.UpdatedInventory.AvailableQuantity)
	assert.Equal(t, 4, res.UpdatedInventory.HeldQuantity)

	assert.Equal(t, domain.TransactionHoldCreate, res.Transaction.TransactionType)
	assert.Equal(t, 10, res.Transaction.PreviousAvailable)
	assert.Equal(t, 6, res.Transaction.NewAvailable)
	assert.Equal(t, "Hold created for checkout", res.Transaction.Reason)
	assert.Equal(t, res.Hold.ID, res.Transaction.Metadata[domain.MetaHoldID])

	stored := f.record(t, "concert-1", "ga")
	assert.Equal(t, 6, stored.AvailableQuantity)
	require.NoError(t, f.engine.CheckConsistency(context.Background()))
}

func TestCreateHold_Durations(t *testing.T) {
	tests := []struct {
		name     string
		holdType domain.HoldType
		minutes  *int
		want     time.Duration
	}{
		{"checkout default", domain.HoldTypeCheckout, nil, 15 * time.Minute},
		{"cash pending default", domain.HoldTypeCashPending, nil, 240 * time.Minute},
		{"admin reserve default", domain.HoldTypeAdminReserve, nil, 1440 * time.Minute},
		{"explicit override", domain.HoldTypeCashPending, intPtr(30), 30 * time.Minute},
		{"zero minutes is already due", domain.HoldTypeCheckout, intPtr(0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.provision(t, "concert-1", "ga", 100, 0)

			res, err := f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
				EventID:             "concert-1",
				TicketTypeID:        "ga",
				Quantity:            1,
				HoldType:            tt.holdType,
				HoldDurationMinutes: tt.minutes,
			})
			require.NoError(t, err)
			assert.Equal(t, baseTime.Add(tt.want), res.Hold.ExpiresAt)
		})
	}
}

func TestCreateHold_PartialFulfillment(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 3, 0)

	req := &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 5, SessionID: "s1"}
	res, err := f.engine.CreateHold(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, res.Conflict)
	assert.Equal(t, domain.ResolutionPartialFulfill, res.Conflict.ResolutionType)
	assert.Equal(t, 5, res.Conflict.RequestedQuantity)
	assert.Equal(t, 3, res.Conflict.AvailableQuantity)
	assert.Equal(t, 3, res.Conflict.ResolvedQuantity)
	assert.Equal(t, "s1", res.Conflict.SessionID)
	assert.Equal(t, 3, res.Hold.Quantity)
	assert.Equal(t, 3, res.ResolvedQuantity)
	assert.Equal(t, 5, req.Quantity, "request is not mutated")

	stored := f.record(t, "concert-1", "ga")
	assert.Equal(t, 0, stored.AvailableQuantity)
	assert.Equal(t, 3, stored.HeldQuantity)
}

func TestCreateHold_PartialDisabled(t *testing.T) {
	configs := map[string]func(*InventoryServiceConfig){
		"partial fulfillment off": func(c *InventoryServiceConfig) { c.EnablePartialFulfillment = false },
		"conflict resolution off": func(c *InventoryServiceConfig) { c.EnableConflictResolution = false },
	}

	for name, mutate := range configs {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultInventoryServiceConfig()
			mutate(cfg)
			f := newFixture(t, cfg)
			f.provision(t, "concert-1", "ga", 3, 0)
			before := f.transactionCount(t)

			_, err := f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
				EventID: "concert-1", TicketTypeID: "ga", Quantity: 5,
			})
			require.ErrorIs(t, err, domain.ErrInsufficientInventory)

			conflict, ok := domain.ConflictFrom(err)
			require.True(t, ok)
			assert.Equal(t, domain.ResolutionDenyRequest, conflict.ResolutionType)
			assert.Equal(t, 0, conflict.ResolvedQuantity)

			stored := f.record(t, "concert-1", "ga")
			assert.Equal(t, 3, stored.AvailableQuantity)
			assert.Equal(t, 0, stored.HeldQuantity)
			assert.Equal(t, before, f.transactionCount(t))
		})
	}
}

func TestCreateHold_SoldOutIsDenied(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 5, 5)

	_, err := f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 1,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	conflict, ok := domain.ConflictFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.ResolutionDenyRequest, conflict.ResolutionType)
	assert.Equal(t, "Requested quantity not available", conflict.Message)
}

func TestCreateHold_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)

	tests := []struct {
		name string
		req  *dto.CreateHoldRequest
		want error
	}{
		{"nil request", nil, domain.ErrInvalidQuantity},
		{"missing event", &dto.CreateHoldRequest{TicketTypeID: "ga", Quantity: 1}, domain.ErrInvalidEventID},
		{"missing ticket type", &dto.CreateHoldRequest{EventID: "concert-1", Quantity: 1}, domain.ErrInvalidTicketTypeID},
		{"zero quantity", &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga"}, domain.ErrInvalidQuantity},
		{"bad hold type", &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1, HoldType: "vip-lounge"}, domain.ErrInvalidHoldType},
		{"negative duration", &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1, HoldDurationMinutes: intPtr(-1)}, domain.ErrInvalidHoldDuration},
		{"duration above one year", &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1, HoldDurationMinutes: intPtr(domain.MaxHoldDurationMinutes + 1)}, domain.ErrInvalidHoldDuration},
		{"duration that would overflow", &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, HoldType: domain.HoldTypeAdminReserve, HoldDurationMinutes: intPtr(200_000_000)}, domain.ErrInvalidHoldDuration},
		{"unknown ticket type", &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "vip", Quantity: 1}, domain.ErrTicketTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateHold(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 10, f.record(t, "concert-1", "ga").AvailableQuantity)
}

func TestCreateHold_LongestDurationStaysInFuture(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)

	res, err := f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
		EventID:             "concert-1",
		TicketTypeID:        "ga",
		Quantity:            2,
		HoldType:            domain.HoldTypeAdminReserve,
		HoldDurationMinutes: intPtr(domain.MaxHoldDurationMinutes),
	})
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(365*24*time.Hour), res.Hold.ExpiresAt)
	assert.False(t, res.Hold.IsDue(f.clock.Now()))
}

func TestUnknownKeys_DoNotGrowLockTable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{
			EventID:      fmt.Sprintf("ghost-%d", i),
			TicketTypeID: "ga",
			Quantity:     1,
		})
		require.ErrorIs(t, err, domain.ErrTicketTypeNotFound)

		_, err = f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{
			EventID:      fmt.Sprintf("ghost-%d", i),
			TicketTypeID: "ga",
			Quantity:     1,
		})
		require.ErrorIs(t, err, domain.ErrTicketTypeNotFound)
	}

	stats := f.engine.Stats()
	assert.Zero(t, stats.LockKeys)
	assert.Zero(t, stats.LockAcquired)
}

func TestCreateHold_BusyKeyFailsFast(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)

	release, err := f.locks.Acquire(context.Background(), domain.InventoryKey("concert-1", "ga"))
	require.NoError(t, err)

	_, err = f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)
	assert.True(t, domain.IsRetryableError(err))
	assert.Equal(t, 10, f.record(t, "concert-1", "ga").AvailableQuantity)

	// Other keys are unaffected
	f.provision(t, "concert-1", "vip", 5, 0)
	_, err = f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "vip", Quantity: 1,
	})
	assert.NoError(t, err)

	release()
	_, err = f.engine.CreateHold(context.Background(), &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 1,
	})
	assert.NoError(t, err)
}

func TestCreateHold_TwoConcurrentSixOfTen(t *testing.T) {
	for _, partial := range []bool{true, false} {
		t.Run(fmt.Sprintf("partial=%v", partial), func(t *testing.T) {
			cfg := DefaultInventoryServiceConfig()
			cfg.EnablePartialFulfillment = partial
			f := newFixture(t, cfg)
			f.provision(t, "concert-1", "ga", 10, 0)

			var (
				wg      sync.WaitGroup
				start   = make(chan struct{})
				results = make([]*dto.HoldResult, 2)
				errs    = make([]error, 2)
			)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					results[i], errs[i] = createHoldRetrying(context.Background(), f.engine, dto.CreateHoldRequest{
						EventID: "concert-1", TicketTypeID: "ga", Quantity: 6,
					})
				}(i)
			}
			close(start)
			wg.Wait()

			var held []int
			failures := 0
			for i := range results {
				if errs[i] != nil {
					require.ErrorIs(t, errs[i], domain.ErrInsufficientInventory)
					failures++
					continue
				}
				held = append(held, results[i].Hold.Quantity)
			}
			sort.Ints(held)

			stored := f.record(t, "concert-1", "ga")
			if partial {
				assert.Equal(t, []int{4, 6}, held)
				assert.Equal(t, 10, stored.HeldQuantity)
				assert.Equal(t, 0, stored.AvailableQuantity)
			} else {
				assert.Equal(t, []int{6}, held)
				assert.Equal(t, 1, failures)
				assert.Equal(t, 6, stored.HeldQuantity)
				assert.Equal(t, 4, stored.AvailableQuantity)
			}
			assert.LessOrEqual(t, stored.HeldQuantity, stored.TotalQuantity)
			require.NoError(t, f.engine.CheckConsistency(context.Background()))
		})
	}
}

func TestConcurrentHoldsAndPurchases_NeverOversell(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 100, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qty := i%3 + 1
			if i%2 == 0 {
				res, err := createHoldRetrying(context.Background(), f.engine, dto.CreateHoldRequest{
					EventID: "concert-1", TicketTypeID: "ga", Quantity: qty,
				})
				if err == nil {
					mu.Lock()
					reserved += res.Hold.Quantity
					mu.Unlock()
				}
				return
			}
			_, err := purchaseRetrying(context.Background(), f.engine, dto.PurchaseRequest{
				EventID: "concert-1", TicketTypeID: "ga", Quantity: qty,
			})
			if err == nil {
				mu.Lock()
				reserved += qty
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	stored := f.record(t, "concert-1", "ga")
	assert.LessOrEqual(t, reserved, 100)
	assert.Equal(t, reserved, stored.SoldQuantity+stored.HeldQuantity)
	require.NoError(t, f.engine.CheckConsistency(context.Background()))
}

func TestReleaseHold(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 4})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	res, err := f.engine.ReleaseHold(ctx, hold.Hold.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 10, res.UpdatedInventory.AvailableQuantity)
	assert.Equal(t, 0, res.UpdatedInventory.HeldQuantity)
	assert.Equal(t, domain.TransactionHoldRelease, res.Transaction.TransactionType)
	assert.Equal(t, domain.ReasonHoldReleased, res.Transaction.Reason)
	assert.Equal(t, 6, res.Transaction.PreviousAvailable)
	assert.Equal(t, 10, res.Transaction.NewAvailable)
	assert.Equal(t, "Hold released for 4 tickets", res.Message)

	stored, err := f.engine.GetHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsExpired)
	assert.Equal(t, domain.HoldStatusReleased, stored.Status)
	require.NotNil(t, stored.ReleasedAt)
	assert.Equal(t, baseTime.Add(time.Minute), *stored.ReleasedAt)

	txBefore := f.transactionCount(t)
	_, err = f.engine.ReleaseHold(ctx, hold.Hold.ID, "cancelled")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	assert.Equal(t, 10, f.record(t, "concert-1", "ga").AvailableQuantity)
	assert.Equal(t, txBefore, f.transactionCount(t))

	_, err = f.engine.ReleaseHold(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
	_, err = f.engine.ReleaseHold(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidHoldID)
}

func TestReleaseHold_ConcurrentDoubleRelease(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 3})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := f.engine.ReleaseHold(ctx, hold.Hold.ID, "cancelled")
				if errors.Is(err, domain.ErrOperationInProgress) {
					runtime.Gosched()
					continue
				}
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
				}
				return
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 10, f.record(t, "concert-1", "ga").AvailableQuantity)
	require.NoError(t, f.engine.CheckConsistency(ctx))
}

func TestExpireHold(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, HoldDurationMinutes: intPtr(0),
	})
	require.NoError(t, err)

	res, err := f.engine.ExpireHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonHoldExpired, res.Transaction.Reason)
	assert.Equal(t, string(domain.HoldStatusExpired), res.Transaction.Metadata[domain.MetaReleaseCause])
	assert.Equal(t, domain.HoldStatusExpired, res.Hold.Status)
	assert.Equal(t, 10, res.UpdatedInventory.AvailableQuantity)

	_, err = f.engine.ExpireHold(ctx, hold.Hold.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestProcessPurchase_ConvertsHold(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 4, SessionID: "checkout-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 6, hold.UpdatedInventory.AvailableQuantity)
	assert.Equal(t, 4, hold.UpdatedInventory.HeldQuantity)

	res, err := f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 4,
		SessionID: "checkout-1", UserID: "user-1", OrderID: "order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.UpdatedInventory.SoldQuantity)
	assert.Equal(t, 0, res.UpdatedInventory.HeldQuantity)
	assert.Equal(t, 6, res.UpdatedInventory.AvailableQuantity)
	assert.Equal(t, hold.Hold.ID, res.ConvertedHoldID)
	assert.Equal(t, domain.TransactionPurchase, res.Transaction.TransactionType)
	assert.Equal(t, 6, res.Transaction.PreviousAvailable)
	assert.Equal(t, 6, res.Transaction.NewAvailable)
	assert.Equal(t, "order-1", res.Transaction.OrderID)
	assert.Equal(t, domain.ReasonPurchaseCompleted, res.Transaction.Reason)
	assert.Equal(t, hold.Hold.ID, res.Transaction.Metadata[domain.MetaConvertedHoldID])

	stored, err := f.engine.GetHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusConverted, stored.Status)
	assert.True(t, stored.IsExpired)

	_, err = f.engine.ReleaseHold(ctx, hold.Hold.ID, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	require.NoError(t, f.engine.CheckConsistency(ctx))
}

func TestProcessPurchase_ConvertsDueHoldBeforeSweep(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, SessionID: "s1",
	})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	res, err := f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, SessionID: "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ConvertedHoldID)
	assert.Equal(t, 8, res.UpdatedInventory.AvailableQuantity)
}

func TestProcessPurchase_QuantityMismatch(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 4, SessionID: "checkout-1",
	})
	require.NoError(t, err)
	txBefore := f.transactionCount(t)

	_, err = f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{
		EventID: "concert-1", TicketTypeID: "ga", Quantity: 3, SessionID: "checkout-1",
	})
	assert.ErrorIs(t, err, domain.ErrQuantityMismatch)

	stored := f.record(t, "concert-1", "ga")
	assert.Equal(t, 0, stored.SoldQuantity)
	assert.Equal(t, 4, stored.HeldQuantity)
	assert.Equal(t, 6, stored.AvailableQuantity)
	assert.Equal(t, txBefore, f.transactionCount(t))
}

func TestProcessPurchase_PicksMatchingSessionHold(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 20, 0)
	ctx := context.Background()

	first, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, SessionID: "s1"})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 3, SessionID: "s1"})
	require.NoError(t, err)

	res, err := f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 3, SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, second.Hold.ID, res.ConvertedHoldID)

	stillActive, err := f.engine.GetHold(ctx, first.Hold.ID)
	require.NoError(t, err)
	assert.True(t, stillActive.IsActive())
	require.NoError(t, f.engine.CheckConsistency(ctx))
}

func TestProcessPurchase_Direct(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)
	ctx := context.Background()

	res, err := f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 3, SessionID: "no-holds"})
	require.NoError(t, err)
	assert.Empty(t, res.ConvertedHoldID)
	assert.Equal(t, 3, res.UpdatedInventory.SoldQuantity)
	assert.Equal(t, 7, res.UpdatedInventory.AvailableQuantity)
	assert.Equal(t, 10, res.Transaction.PreviousAvailable)
	assert.Equal(t, 7, res.Transaction.NewAvailable)

	_, err = f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 8})
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, 7, f.record(t, "concert-1", "ga").AvailableQuantity)

	_, err = f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "vip", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrTicketTypeNotFound)
	_, err = f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestAlerts_CriticalStockScenario(t *testing.T) {
	cfg := DefaultInventoryServiceConfig()
	cfg.Thresholds = domain.Thresholds{LowStock: 2, CriticalStock: 1}
	f := newFixture(t, cfg)
	f.provision(t, "concert-1", "ga", 5, 0)
	ctx := context.Background()

	_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 4})
	require.NoError(t, err)

	alerts, err := f.engine.GetAlerts(ctx, "concert-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertCriticalStock, alerts[0].Type)
	assert.Equal(t, domain.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "ga", alerts[0].TicketTypeID)

	require.Eventually(t, func() bool {
		for _, tp := range f.events.types() {
			if tp == domain.EventAlertCreated {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestAlerts_SoldOutAfterPurchase(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 3, 0)
	ctx := context.Background()

	_, err := f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 3})
	require.NoError(t, err)

	alerts, _ := f.engine.GetAlerts(ctx, "")
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertSoldOut, alerts[0].Type)
	assert.Equal(t, "GA is now sold out", alerts[0].Message)
}

func TestAlerts_Suppression(t *testing.T) {
	cfg := DefaultInventoryServiceConfig()
	cfg.Thresholds = domain.Thresholds{LowStock: 10, CriticalStock: 2}
	cfg.AlertSuppressionWindow = 15 * time.Minute
	f := newFixture(t, cfg)
	f.provision(t, "concert-1", "ga", 20, 0)
	ctx := context.Background()

	hold := func(q int) {
		_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: q})
		require.NoError(t, err)
	}

	hold(11) // 9 left: low-stock
	hold(1)  // 8 left: suppressed
	alerts, _ := f.engine.GetAlerts(ctx, "concert-1")
	require.Len(t, alerts, 1)

	hold(6) // 2 left: band change raises critical-stock
	alerts, _ = f.engine.GetAlerts(ctx, "concert-1")
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.AlertCriticalStock, alerts[0].Type)

	f.clock.Advance(16 * time.Minute)
	hold(1) // 1 left: window elapsed
	alerts, _ = f.engine.GetAlerts(ctx, "concert-1")
	require.Len(t, alerts, 3)
}

func TestAlerts_ReturningToEarlierBandRaises(t *testing.T) {
	cfg := DefaultInventoryServiceConfig()
	cfg.Thresholds = domain.Thresholds{LowStock: 10, CriticalStock: 2}
	cfg.AlertSuppressionWindow = 15 * time.Minute
	f := newFixture(t, cfg)
	f.provision(t, "concert-1", "ga", 20, 0)
	ctx := context.Background()

	_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 11})
	require.NoError(t, err) // 9 left: low-stock
	critical, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 7})
	require.NoError(t, err) // 2 left: critical-stock

	_, err = f.engine.ReleaseHold(ctx, critical.Hold.ID, "customer cancelled")
	require.NoError(t, err) // 9 left, no alert on release

	_, err = f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1})
	require.NoError(t, err) // 8 left: back in low-stock within the window

	alerts, err := f.engine.GetAlerts(ctx, "concert-1")
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, domain.AlertLowStock, alerts[0].Type)
	assert.Equal(t, domain.AlertCriticalStock, alerts[1].Type)
	assert.Equal(t, domain.AlertLowStock, alerts[2].Type)
}

func TestAlerts_SuppressionDisabled(t *testing.T) {
	cfg := DefaultInventoryServiceConfig()
	cfg.AlertSuppressionWindow = 0
	f := newFixture(t, cfg)
	f.provision(t, "concert-1", "ga", 20, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 4})
		require.NoError(t, err)
	}
	// 16, 12, 8 left: only the last is within the low band
	alerts, _ := f.engine.GetAlerts(ctx, "concert-1")
	require.Len(t, alerts, 1)

	_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1})
	require.NoError(t, err)
	alerts, _ = f.engine.GetAlerts(ctx, "concert-1")
	assert.Len(t, alerts, 2)
}

func TestAlerts_ReleaseDoesNotAlert(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 20, 0)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 2})
	require.NoError(t, err)
	_, err = f.engine.ReleaseHold(ctx, hold.Hold.ID, "")
	require.NoError(t, err)

	alerts, _ := f.engine.GetAlerts(ctx, "")
	assert.Empty(t, alerts)
}

func TestAcknowledgeAlert(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 1, 0)
	ctx := context.Background()

	_, err := f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1})
	require.NoError(t, err)
	alerts, _ := f.engine.GetAlerts(ctx, "concert-1")
	require.Len(t, alerts, 1)

	acked, err := f.engine.AcknowledgeAlert(ctx, alerts[0].ID, "ops-1")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, "ops-1", acked.AcknowledgedBy)

	_, err = f.engine.AcknowledgeAlert(ctx, "missing", "ops-1")
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)
}

func TestEvents_PublishedInOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 100, 0)
	ctx := context.Background()

	hold, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, SessionID: "s1"})
	require.NoError(t, err)
	_, err = f.engine.ProcessPurchase(ctx, &dto.PurchaseRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 2, SessionID: "s1"})
	require.NoError(t, err)
	hold2, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "ga", Quantity: 1})
	require.NoError(t, err)
	_, err = f.engine.ReleaseHold(ctx, hold2.Hold.ID, "")
	require.NoError(t, err)

	want := []domain.EventType{
		domain.EventInventoryUpdated, // provision
		domain.EventInventoryUpdated, domain.EventHoldCreated,
		domain.EventInventoryUpdated, domain.EventPurchaseCompleted,
		domain.EventInventoryUpdated, domain.EventHoldCreated,
		domain.EventInventoryUpdated, domain.EventHoldReleased,
	}
	require.Eventually(t, func() bool { return len(f.events.types()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, f.events.types())

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	assert.Equal(t, hold.Hold.ID, f.events.events[2].Hold.ID)
	assert.Equal(t, 98, f.events.events[3].Inventory.AvailableQuantity)
	assert.Equal(t, domain.HoldStatusConverted, f.events.events[4].Hold.Status)
}

func TestGetInventoryStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 100, 10)
	f.provision(t, "concert-1", "vip", 20, 0)
	f.provision(t, "concert-2", "ga", 50, 0)
	ctx := context.Background()

	_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: "vip", Quantity: 5})
	require.NoError(t, err)

	status, err := f.engine.GetInventoryStatus(ctx, "concert-1")
	require.NoError(t, err)
	assert.Equal(t, 120, status.TotalTickets)
	assert.Equal(t, 10, status.TotalSold)
	assert.Equal(t, 5, status.TotalHeld)
	assert.Equal(t, 105, status.TotalAvailable)
	assert.Len(t, status.TicketTypes, 2)
	assert.Len(t, status.ActiveHolds, 1)

	_, err = f.engine.GetInventoryStatus(ctx, "concert-9")
	assert.ErrorIs(t, err, domain.ErrTicketTypeNotFound)
}

func TestGetTicketAvailabilityStatus(t *testing.T) {
	cfg := DefaultInventoryServiceConfig()
	cfg.Thresholds = domain.Thresholds{LowStock: 10, CriticalStock: 5}
	f := newFixture(t, cfg)
	f.provision(t, "concert-1", "plenty", 100, 0)
	f.provision(t, "concert-1", "low", 100, 92)
	f.provision(t, "concert-1", "critical", 100, 97)
	f.provision(t, "concert-1", "gone", 100, 100)
	ctx := context.Background()

	tests := []struct {
		ticketType string
		want       domain.AvailabilityStatus
		message    string
	}{
		{"plenty", domain.AvailabilityAvailable, "100 available"},
		{"low", domain.AvailabilityLowStock, "Only 8 remaining"},
		{"critical", domain.AvailabilityCriticalStock, "Only 3 left!"},
		{"gone", domain.AvailabilitySoldOut, "Sold Out"},
		{"unknown", domain.AvailabilityComingSoon, "Tickets not yet available"},
	}
	for _, tt := range tests {
		t.Run(tt.ticketType, func(t *testing.T) {
			got, err := f.engine.GetTicketAvailabilityStatus(ctx, "concert-1", tt.ticketType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestGetTransactions(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 100, 0)
	f.provision(t, "concert-1", "vip", 100, 0)
	ctx := context.Background()

	for _, tt := range []string{"ga", "vip", "ga"} {
		f.clock.Advance(time.Second)
		_, err := f.engine.CreateHold(ctx, &dto.CreateHoldRequest{EventID: "concert-1", TicketTypeID: tt, Quantity: 1})
		require.NoError(t, err)
	}

	all, err := f.engine.GetTransactions(ctx, &dto.TransactionQuery{EventID: "concert-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 98, all[0].NewAvailable, "newest first")

	ga, err := f.engine.GetTransactions(ctx, &dto.TransactionQuery{EventID: "concert-1", TicketTypeID: "ga", Limit: 1})
	require.NoError(t, err)
	require.Len(t, ga, 1)
	assert.Equal(t, 98, ga[0].NewAvailable)
}

func TestProvisionInventory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.engine.ProvisionInventory(ctx, &domain.ProvisionRequest{EventID: "concert-1", TicketTypeID: "ga", TotalQuantity: 10, SoldQuantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, record.AvailableQuantity)

	_, err = f.engine.ProvisionInventory(ctx, &domain.ProvisionRequest{EventID: "concert-1", TicketTypeID: "ga", TotalQuantity: 10})
	assert.ErrorIs(t, err, domain.ErrInventoryExists)
	_, err = f.engine.ProvisionInventory(ctx, &domain.ProvisionRequest{EventID: "concert-1", TicketTypeID: "vip", TotalQuantity: 1, SoldQuantity: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidSoldQuantity)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	f.provision(t, "concert-1", "ga", 10, 0)

	stats := f.engine.Stats()
	assert.Equal(t, []string{"recorder"}, stats.Subscribers)
	assert.Equal(t, int64(1), stats.LockAcquired)
	assert.Equal(t, 1, stats.LockKeys)
}
