package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/di"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/metrics"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/config"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/kafka"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/logger"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/middleware"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/rabbitmq"
	pkgredis "github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/redis"
	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/pkg/telemetry"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.String("config", "", "path to an env-format config file (defaults to .env and the environment)")
	seedFile := pflag.String("seed", "", "YAML inventory seed file, overrides INVENTORY_SEED_FILE")
	pflag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadWithPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Inventory Service...", zap.String("version", cfg.App.Version))

	ctx := context.Background()

	// Tracing and metrics
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry disabled", zap.Error(err))
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn("Metrics disabled", zap.Error(err))
	}

	// Optional infrastructure; the engine runs in-process without any of it
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			appLog.Warn("Redis unavailable, idempotency and availability mirror disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producerCfg := kafka.DefaultProducerConfig(cfg.Kafka.Brokers)
		producerCfg.ClientID = cfg.Kafka.ClientID
		producer, err = kafka.NewProducer(ctx, producerCfg)
		if err != nil {
			appLog.Warn("Kafka unavailable, event sink disabled", zap.Error(err))
			producer = nil
		} else {
			defer producer.Close()
			appLog.Info("Kafka producer connected", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	}

	var alertPublisher *rabbitmq.Publisher
	if cfg.RabbitMQ.Enabled() {
		alertPublisher, err = rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.AlertQueue)
		if err != nil {
			appLog.Warn("RabbitMQ unavailable, alert notifications disabled", zap.Error(err))
			alertPublisher = nil
		} else {
			defer alertPublisher.Close()
			appLog.Info("RabbitMQ publisher connected", zap.String("queue", cfg.RabbitMQ.AlertQueue))
		}
	}

	// Build dependency injection container
	container, err := di.NewContainer(&di.ContainerConfig{
		Config:         cfg,
		Redis:          redisClient,
		Producer:       producer,
		AlertPublisher: alertPublisher,
	})
	if err != nil {
		appLog.Fatal("Failed to build container", zap.Error(err))
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if err := container.Start(workerCtx, *seedFile); err != nil {
		appLog.Fatal("Failed to start inventory engine", zap.Error(err))
	}

	// Setup Gin
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware())
	router.Use(middleware.AccessLog(appLog, "/health", "/ready"))

	container.Routes.Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// WriteTimeout stays zero so SSE streams are not cut off
	}

	go func() {
		appLog.Info("Inventory Service listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		appLog.Error("Inventory engine did not stop cleanly", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}
