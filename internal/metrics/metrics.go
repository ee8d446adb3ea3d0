package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Engine counters
	HoldsCreated       *telemetry.Counter
	HoldsPartial       *telemetry.Counter
	HoldsReleased      *telemetry.Counter
	HoldsExpired       *telemetry.Counter
	Purchases          *telemetry.Counter
	OperationsRejected *telemetry.Counter
	LockContention     *telemetry.Counter
	AlertsRaised       *telemetry.Counter
	AlertsSuppressed   *telemetry.Counter

	// Delivery counters
	EventsDelivered   *telemetry.Counter
	EventsDeadLetters *telemetry.Counter

	// Histograms
	OperationDuration *telemetry.Histogram
	SweepDuration     *telemetry.Histogram

	// Gauges
	HeldTickets *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all inventory metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	counters := []struct {
		dst  **telemetry.Counter
		opts telemetry.MetricOpts
	}{
		{&HoldsCreated, telemetry.MetricOpts{Name: "inventory_holds_created_total", Description: "Holds granted", Unit: "1"}},
		{&HoldsPartial, telemetry.MetricOpts{Name: "inventory_holds_partial_total", Description: "Holds granted with partial fulfillment", Unit: "1"}},
		{&HoldsReleased, telemetry.MetricOpts{Name: "inventory_holds_released_total", Description: "Holds released by callers", Unit: "1"}},
		{&HoldsExpired, telemetry.MetricOpts{Name: "inventory_holds_expired_total", Description: "Holds released by the sweeper", Unit: "1"}},
		{&Purchases, telemetry.MetricOpts{Name: "inventory_purchases_total", Description: "Completed purchases by path", Unit: "1"}},
		{&OperationsRejected, telemetry.MetricOpts{Name: "inventory_operations_rejected_total", Description: "Operations rejected by reason", Unit: "1"}},
		{&LockContention, telemetry.MetricOpts{Name: "inventory_lock_contention_total", Description: "Operations refused because the key was busy", Unit: "1"}},
		{&AlertsRaised, telemetry.MetricOpts{Name: "inventory_alerts_raised_total", Description: "Stock alerts raised by type", Unit: "1"}},
		{&AlertsSuppressed, telemetry.MetricOpts{Name: "inventory_alerts_suppressed_total", Description: "Stock alerts suppressed as duplicates", Unit: "1"}},
		{&EventsDelivered, telemetry.MetricOpts{Name: "inventory_events_delivered_total", Description: "Events delivered to subscribers", Unit: "1"}},
		{&EventsDeadLetters, telemetry.MetricOpts{Name: "inventory_events_dead_letters_total", Description: "Events that exhausted delivery retries", Unit: "1"}},
	}
	for _, c := range counters {
		counter, err := telemetry.NewCounter(c.opts)
		if err != nil {
			return err
		}
		*c.dst = counter
	}

	var err error
	OperationDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "inventory_operation_duration_seconds",
		Description: "Duration of engine operations",
		Unit:        "s",
	}, []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}) // 50µs to 100ms
	if err != nil {
		return err
	}

	SweepDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "inventory_sweep_duration_seconds",
		Description: "Duration of one expiry sweep",
		Unit:        "s",
	}, []float64{0.001, 0.01, 0.1, 1, 5})
	if err != nil {
		return err
	}

	HeldTickets, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "inventory_held_tickets",
		Description: "Tickets currently under active hold",
		Unit:        "1",
	})
	return err
}

// RecordHoldCreated records a granted hold
func RecordHoldCreated(ctx context.Context, eventID, ticketTypeID string, quantity int, partial bool) {
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID),
		attribute.String("ticket_type_id", ticketTypeID),
	}
	if HoldsCreated != nil {
		HoldsCreated.Inc(ctx, attrs...)
	}
	if partial && HoldsPartial != nil {
		HoldsPartial.Inc(ctx, attrs...)
	}
	if HeldTickets != nil {
		HeldTickets.Add(ctx, int64(quantity), attrs...)
	}
}

// RecordHoldReleased records a released or expired hold
func RecordHoldReleased(ctx context.Context, eventID, ticketTypeID string, quantity int, expired bool) {
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID),
		attribute.String("ticket_type_id", ticketTypeID),
	}
	counter := HoldsReleased
	if expired {
		counter = HoldsExpired
	}
	if counter != nil {
		counter.Inc(ctx, attrs...)
	}
	if HeldTickets != nil {
		HeldTickets.Add(ctx, -int64(quantity), attrs...)
	}
}

// RecordPurchase records a completed purchase; converted purchases release held tickets
func RecordPurchase(ctx context.Context, eventID, ticketTypeID string, quantity int, converted bool) {
	path := "direct"
	if converted {
		path = "hold_conversion"
	}
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID),
		attribute.String("ticket_type_id", ticketTypeID),
	}
	if Purchases != nil {
		Purchases.Inc(ctx, append(attrs, attribute.String("path", path))...)
	}
	if converted && HeldTickets != nil {
		HeldTickets.Add(ctx, -int64(quantity), attrs...)
	}
}

// RecordRejected records an operation that failed a business rule
func RecordRejected(ctx context.Context, operation, reason string) {
	if OperationsRejected != nil {
		OperationsRejected.Inc(ctx,
			attribute.String("operation", operation),
			attribute.String("reason", reason),
		)
	}
}

// RecordLockContention records a busy key
func RecordLockContention(ctx context.Context, operation string) {
	if LockContention != nil {
		LockContention.Inc(ctx, attribute.String("operation", operation))
	}
}

// RecordAlert records a raised or suppressed alert
func RecordAlert(ctx context.Context, alertType string, suppressed bool) {
	counter := AlertsRaised
	if suppressed {
		counter = AlertsSuppressed
	}
	if counter != nil {
		counter.Inc(ctx, attribute.String("type", alertType))
	}
}

// RecordDelivery records an event delivery outcome for a subscriber
func RecordDelivery(ctx context.Context, subscriber string, deadLetter bool) {
	counter := EventsDelivered
	if deadLetter {
		counter = EventsDeadLetters
	}
	if counter != nil {
		counter.Inc(ctx, attribute.String("subscriber", subscriber))
	}
}

// RecordOperationDuration records the latency of an engine operation
func RecordOperationDuration(ctx context.Context, operation string, d time.Duration) {
	if OperationDuration != nil {
		OperationDuration.Record(ctx, d.Seconds(), attribute.String("operation", operation))
	}
}

// RecordSweep records the duration of a sweep
func RecordSweep(ctx context.Context, d time.Duration) {
	if SweepDuration != nil {
		SweepDuration.Record(ctx, d.Seconds())
	}
}
