package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInventoryConfig() InventoryConfig {
	return InventoryConfig{
		DefaultHoldDurationMinutes:      15,
		CashPaymentHoldDurationMinutes:  240,
		AdminReserveHoldDurationMinutes: 1440,
		LowStockThreshold:               10,
		CriticalStockThreshold:          5,
		AuditRetentionDays:              90,
		SweepInterval:                   time.Minute,
		LockPolicy:                      LockPolicyFailFast,
	}
}

func TestLoadWithPath_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=inventory-test\n"), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "inventory-test", cfg.App.Name)
	assert.Equal(t, 15, cfg.Inventory.DefaultHoldDurationMinutes)
	assert.Equal(t, 240, cfg.Inventory.CashPaymentHoldDurationMinutes)
	assert.Equal(t, 1440, cfg.Inventory.AdminReserveHoldDurationMinutes)
	assert.Equal(t, 10, cfg.Inventory.LowStockThreshold)
	assert.Equal(t, 5, cfg.Inventory.CriticalStockThreshold)
	assert.True(t, cfg.Inventory.EnableConflictResolution)
	assert.True(t, cfg.Inventory.EnablePartialFulfillment)
	assert.Equal(t, 90, cfg.Inventory.AuditRetentionDays)
	assert.Equal(t, 60*time.Second, cfg.Inventory.SweepInterval)
	assert.Equal(t, LockPolicyFailFast, cfg.Inventory.LockPolicy)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.RabbitMQ.Enabled())
}

func TestLoadWithPath_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "INVENTORY_LOW_STOCK_THRESHOLD=4\n" +
		"INVENTORY_CRITICAL_STOCK_THRESHOLD=2\n" +
		"INVENTORY_LOCK_POLICY=wait\n" +
		"INVENTORY_LOCK_WAIT_TIMEOUT=100ms\n" +
		"KAFKA_BROKERS=broker-1:9092, broker-2:9092\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Inventory.LowStockThreshold)
	assert.Equal(t, 2, cfg.Inventory.CriticalStockThreshold)
	assert.Equal(t, LockPolicyWait, cfg.Inventory.LockPolicy)
	assert.Equal(t, 100*time.Millisecond, cfg.Inventory.LockWaitTimeout)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestInventoryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*InventoryConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*InventoryConfig) {}},
		{name: "critical equals low", mutate: func(c *InventoryConfig) { c.CriticalStockThreshold = 10 }, wantErr: true},
		{name: "negative critical", mutate: func(c *InventoryConfig) { c.CriticalStockThreshold = -1 }, wantErr: true},
		{name: "negative hold duration", mutate: func(c *InventoryConfig) { c.DefaultHoldDurationMinutes = -1 }, wantErr: true},
		{name: "zero sweep interval", mutate: func(c *InventoryConfig) { c.SweepInterval = 0 }, wantErr: true},
		{name: "unknown lock policy", mutate: func(c *InventoryConfig) { c.LockPolicy = "queue" }, wantErr: true},
		{name: "wait policy without timeout", mutate: func(c *InventoryConfig) { c.LockPolicy = LockPolicyWait }, wantErr: true},
		{name: "wait policy with timeout", mutate: func(c *InventoryConfig) {
			c.LockPolicy = LockPolicyWait
			c.LockWaitTimeout = time.Second
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validInventoryConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecret(t *testing.T) {
	cfg := &Config{
		App:       AppConfig{Name: "inventory-service", Environment: "production"},
		Server:    ServerConfig{Port: 8084},
		Inventory: validInventoryConfig(),
		JWT:       JWTConfig{Secret: defaultJWTSecret},
	}
	assert.Error(t, cfg.Validate())

	cfg.JWT.Secret = "a-real-secret"
	assert.NoError(t, cfg.Validate())
}

func TestInventoryConfig_AuditRetention(t *testing.T) {
	cfg := validInventoryConfig()
	assert.Equal(t, 90*24*time.Hour, cfg.AuditRetention())
}
