package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Lock policies understood by the inventory lock manager
const (
	LockPolicyFailFast = "fail-fast"
	LockPolicyWait     = "wait"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	OTel      OTelConfig      `mapstructure:"otel"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// InventoryConfig holds the reservation engine settings
type InventoryConfig struct {
	DefaultHoldDurationMinutes      int           `mapstructure:"default_hold_duration_minutes"`
	CashPaymentHoldDurationMinutes  int           `mapstructure:"cash_payment_hold_duration_minutes"`
	AdminReserveHoldDurationMinutes int           `mapstructure:"admin_reserve_hold_duration_minutes"`
	LowStockThreshold               int           `mapstructure:"low_stock_threshold"`
	CriticalStockThreshold          int           `mapstructure:"critical_stock_threshold"`
	EnableConflictResolution        bool          `mapstructure:"enable_conflict_resolution"`
	EnablePartialFulfillment        bool          `mapstructure:"enable_partial_fulfillment"`
	AuditRetentionDays              int           `mapstructure:"audit_retention_days"`
	SweepInterval                   time.Duration `mapstructure:"sweep_interval"`
	RetentionInterval               time.Duration `mapstructure:"retention_interval"`
	LockPolicy                      string        `mapstructure:"lock_policy"`
	LockWaitTimeout                 time.Duration `mapstructure:"lock_wait_timeout"`
	AlertSuppressionWindow          time.Duration `mapstructure:"alert_suppression_window"`
	SeedFile                        string        `mapstructure:"seed_file"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
	Topic    string   `mapstructure:"topic"`
}

// RabbitMQConfig holds the alert notification queue settings
type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	AlertQueue string `mapstructure:"alert_queue"`
}

// Enabled reports whether an AMQP broker is configured
func (r *RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// JWTConfig holds JWT settings for operator endpoints
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine, environment variables still apply
	_ = v.ReadInConfig()

	return load(v)
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "inventory-service")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_LOG_LEVEL", "info")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8084)
	v.SetDefault("SERVER_READ_TIMEOUT", "5s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Inventory engine defaults
	v.SetDefault("INVENTORY_DEFAULT_HOLD_DURATION_MINUTES", 15)
	v.SetDefault("INVENTORY_CASH_PAYMENT_HOLD_DURATION_MINUTES", 240)    // 4 hours
	v.SetDefault("INVENTORY_ADMIN_RESERVE_HOLD_DURATION_MINUTES", 1440) // 24 hours
	v.SetDefault("INVENTORY_LOW_STOCK_THRESHOLD", 10)
	v.SetDefault("INVENTORY_CRITICAL_STOCK_THRESHOLD", 5)
	v.SetDefault("INVENTORY_ENABLE_CONFLICT_RESOLUTION", true)
	v.SetDefault("INVENTORY_ENABLE_PARTIAL_FULFILLMENT", true)
	v.SetDefault("INVENTORY_AUDIT_RETENTION_DAYS", 90)
	v.SetDefault("INVENTORY_SWEEP_INTERVAL", "60s")
	v.SetDefault("INVENTORY_RETENTION_INTERVAL", "1h")
	v.SetDefault("INVENTORY_LOCK_POLICY", LockPolicyFailFast)
	v.SetDefault("INVENTORY_LOCK_WAIT_TIMEOUT", "250ms")
	v.SetDefault("INVENTORY_ALERT_SUPPRESSION_WINDOW", "15m")
	v.SetDefault("INVENTORY_SEED_FILE", "")

	// Redis defaults
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT_ID", "inventory-service")
	v.SetDefault("KAFKA_TOPIC", "inventory-events")

	// RabbitMQ defaults
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_ALERT_QUEUE", "inventory.alerts")

	// JWT defaults
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "booking-rush")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "inventory-service")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

func bindConfig(v *viper.Viper, cfg *Config) {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.LogLevel = v.GetString("APP_LOG_LEVEL")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Inventory
	cfg.Inventory.DefaultHoldDurationMinutes = v.GetInt("INVENTORY_DEFAULT_HOLD_DURATION_MINUTES")
	cfg.Inventory.CashPaymentHoldDurationMinutes = v.GetInt("INVENTORY_CASH_PAYMENT_HOLD_DURATION_MINUTES")
	cfg.Inventory.AdminReserveHoldDurationMinutes = v.GetInt("INVENTORY_ADMIN_RESERVE_HOLD_DURATION_MINUTES")
	cfg.Inventory.LowStockThreshold = v.GetInt("INVENTORY_LOW_STOCK_THRESHOLD")
	cfg.Inventory.CriticalStockThreshold = v.GetInt("INVENTORY_CRITICAL_STOCK_THRESHOLD")
	cfg.Inventory.EnableConflictResolution = v.GetBool("INVENTORY_ENABLE_CONFLICT_RESOLUTION")
	cfg.Inventory.EnablePartialFulfillment = v.GetBool("INVENTORY_ENABLE_PARTIAL_FULFILLMENT")
	cfg.Inventory.AuditRetentionDays = v.GetInt("INVENTORY_AUDIT_RETENTION_DAYS")
	cfg.Inventory.SweepInterval = v.GetDuration("INVENTORY_SWEEP_INTERVAL")
	cfg.Inventory.RetentionInterval = v.GetDuration("INVENTORY_RETENTION_INTERVAL")
	cfg.Inventory.LockPolicy = v.GetString("INVENTORY_LOCK_POLICY")
	cfg.Inventory.LockWaitTimeout = v.GetDuration("INVENTORY_LOCK_WAIT_TIMEOUT")
	cfg.Inventory.AlertSuppressionWindow = v.GetDuration("INVENTORY_ALERT_SUPPRESSION_WINDOW")
	cfg.Inventory.SeedFile = v.GetString("INVENTORY_SEED_FILE")

	// Redis
	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")

	// RabbitMQ
	cfg.RabbitMQ.URL = v.GetString("RABBITMQ_URL")
	cfg.RabbitMQ.AlertQueue = v.GetString("RABBITMQ_ALERT_QUEUE")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Inventory.Validate(); err != nil {
		return err
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when kafka is enabled")
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}

	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return errors.New("JWT secret must be changed in production")
	}

	return nil
}

// Validate checks thresholds, durations and the lock policy
func (i *InventoryConfig) Validate() error {
	if i.DefaultHoldDurationMinutes < 0 || i.CashPaymentHoldDurationMinutes < 0 || i.AdminReserveHoldDurationMinutes < 0 {
		return errors.New("hold durations cannot be negative")
	}
	if i.CriticalStockThreshold < 0 {
		return fmt.Errorf("invalid critical stock threshold: %d", i.CriticalStockThreshold)
	}
	if i.CriticalStockThreshold >= i.LowStockThreshold {
		return fmt.Errorf("critical stock threshold (%d) must be lower than low stock threshold (%d)",
			i.CriticalStockThreshold, i.LowStockThreshold)
	}
	if i.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %s", i.SweepInterval)
	}
	if i.AuditRetentionDays < 0 {
		return fmt.Errorf("invalid audit retention days: %d", i.AuditRetentionDays)
	}
	switch i.LockPolicy {
	case LockPolicyFailFast:
	case LockPolicyWait:
		if i.LockWaitTimeout <= 0 {
			return errors.New("INVENTORY_LOCK_WAIT_TIMEOUT must be positive for the wait lock policy")
		}
	default:
		return fmt.Errorf("unknown lock policy: %q", i.LockPolicy)
	}
	return nil
}

// AuditRetention returns the retention period as a duration (0 keeps history forever)
func (i *InventoryConfig) AuditRetention() time.Duration {
	return time.Duration(i.AuditRetentionDays) * 24 * time.Hour
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
