package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/metrics"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/retry"
	"go.uber.org/zap"
)

// Event bus errors
var (
	ErrSubscriberExists = errors.New("subscriber already registered")
	ErrEventBusClosed   = errors.New("event bus closed")
)

// EventHandler consumes one event. A returned error causes redelivery of the same event,
// so handlers must be idempotent on InventoryEvent.ID.
type EventHandler func(ctx context.Context, event *domain.InventoryEvent) error

// EventSink is a named subscriber such as a broker forwarder
type EventSink interface {
	Name() string
	Handle(ctx context.Context, event *domain.InventoryEvent) error
}

// EventBusConfig contains configuration for the event bus
type EventBusConfig struct {
	Retry      *retry.Config
	DeadLetter retry.DeadLetterPublisher
	Logger     *logger.Logger
}

// EventBus fans events out to named subscribers. Each subscriber has its own unbounded
// FIFO queue drained by one goroutine, so publishing never blocks and every subscriber
// sees events in publish order. Delivery is at-least-once: failed deliveries are retried
// with backoff and handed to the dead-letter publisher once retries are exhausted.
type EventBus struct {
	retrier    *retry.Retrier
	deadLetter retry.DeadLetterPublisher
	log        *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
}

type subscription struct {
	name    string
	handler EventHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []*domain.InventoryEvent
	notify chan struct{}
	drain  chan struct{}
	done   chan struct{}
}

// NewEventBus creates an event bus
func NewEventBus(cfg *EventBusConfig) *EventBus {
	if cfg == nil {
		cfg = &EventBusConfig{}
	}
	deadLetter := cfg.DeadLetter
	if deadLetter == nil {
		deadLetter = retry.NoOpDeadLetterPublisher{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventBus{
		retrier:    retry.New(cfg.Retry),
		deadLetter: deadLetter,
		log:        log.Named("event-bus"),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]*subscription),
	}
}

// Subscribe registers a handler under a unique name and starts its dispatcher
func (b *EventBus) Subscribe(name string, handler EventHandler) error {
	if name == "" || handler == nil {
		return errors.New("subscriber name and handler are required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("%w: %s", ErrSubscriberExists, name)
	}

	ctx, cancel := context.WithCancel(b.ctx)
	s := &subscription{
		name:    name,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		notify:  make(chan struct{}, 1),
		drain:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	b.subs[name] = s
	go b.dispatch(s)

	b.log.Info("Subscriber registered", zap.String("subscriber", name))
	return nil
}

// SubscribeSink registers a sink under its own name
func (b *EventBus) SubscribeSink(sink EventSink) error {
	return b.Subscribe(sink.Name(), sink.Handle)
}

// Unsubscribe stops a subscriber; events still queued for it are discarded
func (b *EventBus) Unsubscribe(name string) bool {
	b.mu.Lock()
	s, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	s.cancel()
	<-s.done
	b.log.Info("Subscriber removed", zap.String("subscriber", name))
	return true
}

// Subscribers returns the registered subscriber names
func (b *EventBus) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish enqueues events for every subscriber in the given order. It never blocks on delivery.
func (b *EventBus) Publish(events ...*domain.InventoryEvent) {
	if len(events) == 0 {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.log.Warn("Publish after close dropped", zap.Int("events", len(events)))
		return
	}
	for _, s := range b.subs {
		s.push(events)
	}
}

// Close stops accepting events and waits for queued events to be delivered.
// When ctx expires first, in-flight deliveries are cancelled.
func (b *EventBus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
		close(s.drain)
	}
	b.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		for _, s := range subs {
			<-s.done
		}
		close(drained)
	}()

	select {
	case <-drained:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-drained
		return ctx.Err()
	}
}

func (s *subscription) push(events []*domain.InventoryEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, events...)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) pop() (*domain.InventoryEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, false
	}
	ev := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return ev, true
}

func (b *EventBus) dispatch(s *subscription) {
	defer close(s.done)

	for {
		if s.ctx.Err() != nil {
			return
		}
		if ev, ok := s.pop(); ok {
			b.deliver(s, ev)
			continue
		}

		select {
		case <-s.notify:
		case <-s.drain:
			// Events pushed before drain was closed are already queued
			if _, ok := s.peek(); !ok {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *subscription) peek() (*domain.InventoryEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	return s.queue[0], true
}

func (b *EventBus) deliver(s *subscription, ev *domain.InventoryEvent) {
	result := b.retrier.DoWithCallback(s.ctx, func(ctx context.Context) error {
		return s.invoke(ctx, ev)
	}, func(attempt int, err error, next time.Duration) {
		b.log.Warn("Event delivery failed, retrying",
			zap.String("subscriber", s.name),
			zap.String("event_type", string(ev.Type)),
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("next_retry", next),
			zap.Error(err),
		)
	})

	if result.Err == nil {
		metrics.RecordDelivery(s.ctx, s.name, false)
		return
	}
	if errors.Is(result.Err, retry.ErrContextCanceled) {
		return
	}

	metrics.RecordDelivery(s.ctx, s.name, true)
	b.log.Error("Event delivery exhausted retries",
		zap.String("subscriber", s.name),
		zap.String("event_type", string(ev.Type)),
		zap.String("event_id", ev.ID),
		zap.Int("attempts", result.Attempts),
		zap.Error(result.LastError),
	)

	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("Failed to marshal dead letter", zap.Error(err))
		return
	}

	errMsg := ""
	if result.LastError != nil {
		errMsg = result.LastError.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.deadLetter.PublishDeadLetter(ctx, &retry.DeadLetter{
		ID:         ev.ID,
		Subscriber: s.name,
		Key:        ev.Key(),
		Payload:    payload,
		Headers:    map[string]string{"event_type": string(ev.Type)},
		Error:      errMsg,
		Attempts:   result.Attempts,
		FailedAt:   time.Now(),
	}); err != nil {
		b.log.Error("Failed to publish dead letter",
			zap.String("subscriber", s.name),
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}
}

func (s *subscription) invoke(ctx context.Context, ev *domain.InventoryEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %s panicked: %v", s.name, r)
		}
	}()
	return s.handler(ctx, ev)
}
