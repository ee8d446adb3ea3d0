package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/clock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/dto"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/handler"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/lock"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/repository"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/service"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/worker"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/config"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/kafka"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/middleware"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/rabbitmq"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/redis"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/retry"
	"go.uber.org/zap"
)

// Container holds all dependencies for the inventory service
type Container struct {
	Config *config.Config

	// Infrastructure, each optional
	Redis          *redis.Client
	Producer       *kafka.Producer
	AlertPublisher *rabbitmq.Publisher

	// Repositories
	InventoryRepo    repository.InventoryRepository
	HoldRepo         repository.HoldRepository
	TransactionRepo  repository.TransactionRepository
	AlertRepo        repository.AlertRepository
	AvailabilityRepo *repository.RedisAvailabilityRepository

	// Engine
	Clock            clock.Clock
	Locks            *lock.Manager
	Bus              *service.EventBus
	InventoryService *service.ReservationEngine

	// Workers
	ExpiryWorker    *worker.ExpiryWorker
	RetentionWorker *worker.RetentionWorker

	// Handlers
	HealthHandler    *handler.HealthHandler
	InventoryHandler *handler.InventoryHandler
	HoldHandler      *handler.HoldHandler
	StreamHandler    *handler.StreamHandler
	Routes           *handler.Routes

	log *logger.Logger
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config         *config.Config
	Redis          *redis.Client
	Producer       *kafka.Producer
	AlertPublisher *rabbitmq.Publisher
	// Clock defaults to the system clock
	Clock clock.Clock
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("di: config is required")
	}
	appCfg := cfg.Config

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	c := &Container{
		Config:         appCfg,
		Redis:          cfg.Redis,
		Producer:       cfg.Producer,
		AlertPublisher: cfg.AlertPublisher,
		Clock:          clk,
		log:            logger.Get().Named("di"),
	}

	// Repositories
	c.InventoryRepo = repository.NewMemoryInventoryRepository()
	c.HoldRepo = repository.NewMemoryHoldRepository()
	c.TransactionRepo = repository.NewMemoryTransactionRepository()
	c.AlertRepo = repository.NewMemoryAlertRepository()

	// Locks and event bus
	locks, err := newLockManager(&appCfg.Inventory)
	if err != nil {
		return nil, err
	}
	c.Locks = locks

	busCfg := &service.EventBusConfig{
		Retry:      retry.DefaultConfig(),
		DeadLetter: retry.NoOpDeadLetterPublisher{},
	}
	if c.Producer != nil {
		busCfg.DeadLetter = retry.NewKafkaDeadLetterPublisher(c.Producer, eventTopic(appCfg)+".dlq", appCfg.App.Name)
	}
	c.Bus = service.NewEventBus(busCfg)

	// Engine
	c.InventoryService = service.NewReservationEngine(service.InventoryServiceDeps{
		Inventory:    c.InventoryRepo,
		Holds:        c.HoldRepo,
		Transactions: c.TransactionRepo,
		Alerts:       c.AlertRepo,
		Locks:        c.Locks,
		Clock:        c.Clock,
		Bus:          c.Bus,
	}, engineConfig(&appCfg.Inventory))

	// Downstream sinks
	if err := c.subscribeSinks(); err != nil {
		return nil, err
	}

	// Workers
	c.ExpiryWorker = worker.NewExpiryWorker(c.InventoryService, c.HoldRepo, c.Clock, &worker.ExpiryWorkerConfig{
		SweepInterval: appCfg.Inventory.SweepInterval,
	})
	if retention := appCfg.Inventory.AuditRetention(); retention > 0 {
		c.RetentionWorker = worker.NewRetentionWorker(map[string]worker.Pruner{
			"transactions": c.TransactionRepo.PruneBefore,
			"alerts":       c.AlertRepo.PruneBefore,
			"holds":        c.HoldRepo.PruneTerminated,
		}, c.Clock, &worker.RetentionWorkerConfig{
			Retention: retention,
			Interval:  appCfg.Inventory.RetentionInterval,
		})
	}

	// Handlers
	components := map[string]handler.HealthChecker{}
	if c.Redis != nil {
		components["redis"] = c.Redis
	}
	if c.Producer != nil {
		components["kafka"] = c.Producer
	}
	if c.AlertPublisher != nil {
		components["rabbitmq"] = c.AlertPublisher
	}
	c.HealthHandler = handler.NewHealthHandler(components, c.Stats)
	c.InventoryHandler = handler.NewInventoryHandler(c.InventoryService)
	c.HoldHandler = handler.NewHoldHandler(c.InventoryService)
	c.StreamHandler = handler.NewStreamHandler(c.Bus, 0)

	c.Routes = &handler.Routes{
		Health:    c.HealthHandler,
		Inventory: c.InventoryHandler,
		Holds:     c.HoldHandler,
		Stream:    c.StreamHandler,
		Auth: middleware.JWTAuth(middleware.AuthConfig{
			Secret: appCfg.JWT.Secret,
			Issuer: appCfg.JWT.Issuer,
		}),
	}
	if c.Redis != nil {
		c.Routes.Idempotency = middleware.Idempotency(middleware.IdempotencyConfig{Redis: c.Redis.Client()})
	}

	return c, nil
}

func (c *Container) subscribeSinks() error {
	if c.Producer != nil {
		sink := service.NewKafkaEventSink(c.Producer, eventTopic(c.Config), c.Config.App.Name)
		if err := c.Bus.SubscribeSink(sink); err != nil {
			return fmt.Errorf("failed to subscribe kafka sink: %w", err)
		}
		c.log.Info("Kafka event sink subscribed", zap.String("topic", sink.Topic()))
	}
	if c.AlertPublisher != nil {
		if err := c.Bus.SubscribeSink(service.NewAlertNotifier(c.AlertPublisher)); err != nil {
			return fmt.Errorf("failed to subscribe alert notifier: %w", err)
		}
		c.log.Info("Alert notifier subscribed", zap.String("queue", c.AlertPublisher.Queue()))
	}
	if c.Redis != nil {
		c.AvailabilityRepo = repository.NewRedisAvailabilityRepository(c.Redis, 0)
		if err := c.Bus.SubscribeSink(service.NewAvailabilityMirror(c.AvailabilityRepo)); err != nil {
			return fmt.Errorf("failed to subscribe availability mirror: %w", err)
		}
		c.log.Info("Availability mirror subscribed")
	}
	return nil
}

// Start seeds inventory and starts the background workers
func (c *Container) Start(ctx context.Context, seedFile string) error {
	if seedFile == "" {
		seedFile = c.Config.Inventory.SeedFile
	}
	if seedFile != "" {
		created, err := service.LoadSeedFile(ctx, c.InventoryService, seedFile)
		if err != nil {
			return fmt.Errorf("failed to seed inventory: %w", err)
		}
		c.log.Info("Inventory seeded", zap.String("file", seedFile), zap.Int("created", created))
	}

	if err := c.ExpiryWorker.Start(ctx); err != nil {
		return err
	}
	if c.RetentionWorker != nil {
		if err := c.RetentionWorker.Start(ctx); err != nil {
			c.ExpiryWorker.Stop()
			return err
		}
	}
	return nil
}

// Close stops the workers, then drains the event bus so queued events still reach the sinks
func (c *Container) Close(ctx context.Context) error {
	c.ExpiryWorker.Stop()
	if c.RetentionWorker != nil {
		c.RetentionWorker.Stop()
	}
	if err := c.Bus.Close(ctx); err != nil {
		return fmt.Errorf("event bus did not drain: %w", err)
	}
	return nil
}

// Stats merges engine, sweeper and retention statistics
func (c *Container) Stats() *dto.EngineStats {
	stats := c.InventoryService.Stats()

	sweep := c.ExpiryWorker.GetStats()
	stats.SweepRuns = sweep.TotalRuns
	stats.HoldsExpired = sweep.TotalExpired
	stats.SweepSkipped = sweep.TotalSkipped
	stats.LastSweepAt = sweep.LastSweepAt

	if c.RetentionWorker != nil {
		retention := c.RetentionWorker.GetStats()
		stats.RecordsPruned = retention.TotalPruned
		stats.LastRetentionAt = retention.LastRunAt
	}
	return stats
}

func newLockManager(cfg *config.InventoryConfig) (*lock.Manager, error) {
	switch cfg.LockPolicy {
	case config.LockPolicyFailFast, "":
		return lock.NewManager(lock.Config{Policy: lock.FailFast}), nil
	case config.LockPolicyWait:
		return lock.NewManager(lock.Config{Policy: lock.BoundedWait, WaitTimeout: cfg.LockWaitTimeout}), nil
	default:
		return nil, fmt.Errorf("unknown lock policy: %q", cfg.LockPolicy)
	}
}

func engineConfig(cfg *config.InventoryConfig) *service.InventoryServiceConfig {
	return &service.InventoryServiceConfig{
		CheckoutHoldDuration:     time.Duration(cfg.DefaultHoldDurationMinutes) * time.Minute,
		CashPendingHoldDuration:  time.Duration(cfg.CashPaymentHoldDurationMinutes) * time.Minute,
		AdminReserveHoldDuration: time.Duration(cfg.AdminReserveHoldDurationMinutes) * time.Minute,
		Thresholds: domain.Thresholds{
			LowStock:      cfg.LowStockThreshold,
			CriticalStock: cfg.CriticalStockThreshold,
		},
		EnableConflictResolution: cfg.EnableConflictResolution,
		EnablePartialFulfillment: cfg.EnablePartialFulfillment,
		AlertSuppressionWindow:   cfg.AlertSuppressionWindow,
	}
}

func eventTopic(cfg *config.Config) string {
	if cfg.Kafka.Topic != "" {
		return cfg.Kafka.Topic
	}
	return "inventory-events"
}
