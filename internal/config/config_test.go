package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 10, cfg.Validation.LowStockThreshold)
	assert.Equal(t, 7, cfg.Jobs.ReminderDays)
	assert.Len(t, cfg.Validation.PhonePatterns, 2)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.yaml")
	raw := `
server:
  http_addr: ":9090"
store:
  driver: memory
redis:
  addr: "redis:6379"
  email_lock_ttl: 10s
jobs:
  heartbeat:
    schedule: "@every 1m"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.Redis.EmailLockTTL)
	assert.Equal(t, "@every 1m", cfg.Jobs.Heartbeat.Schedule)
	// untouched nested fields keep their defaults
	assert.Equal(t, "/tmp/crm_heartbeat_log.txt", cfg.Jobs.Heartbeat.LogFile)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRM_STORE_DRIVER", "memory")
	t.Setenv("CRM_JOBS_ENABLED", "false")
	t.Setenv("CRM_LOW_STOCK_THRESHOLD", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.False(t, cfg.Jobs.Enabled)
	assert.Equal(t, 5, cfg.Validation.LowStockThreshold)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CRM_STORE_DRIVER", "postgres")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvListAndMalformedValue(t *testing.T) {
	t.Setenv("CRM_CORS_ORIGINS", "http://localhost:3000,https://crm.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "https://crm.example.com"}, cfg.Server.CORSOrigins)

	t.Setenv("CRM_LOW_STOCK_THRESHOLD", "ten")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOW_STOCK_THRESHOLD")
}
