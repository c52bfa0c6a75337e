package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8001", cfg.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.RateLimitInterval())
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 2*time.Hour, cfg.MissedAfter())
	assert.Equal(t, 50, cfg.IdleEventThreshold)
	assert.Equal(t, 60, cfg.IdleBatchThreshold)
	assert.Equal(t, 15.0, cfg.TheftTolerancePercent)
	assert.Equal(t, 0.7, cfg.LowMileageRatio)
	assert.Equal(t, 24*time.Hour, cfg.IdleWindow)
	assert.Empty(t, cfg.ValidAPIKeys)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_INTERVAL_MS", "500")
	t.Setenv("IDLE_SPEED_THRESHOLD", "2.5")
	t.Setenv("RISK_BATCH_INTERVAL", "15m")
	t.Setenv("VALID_API_KEYS", " key-a, ,key-b ")
	t.Setenv("THEFT_POLICY", "ratio")

	cfg := Load()
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimitInterval())
	assert.Equal(t, 2.5, cfg.IdleSpeedThreshold)
	assert.Equal(t, 15*time.Minute, cfg.RiskBatchInterval)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.ValidAPIKeys)
	assert.Equal(t, "ratio", cfg.TheftPolicy)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ARRIVAL_WORKERS", "many")
	t.Setenv("LOW_MILEAGE_RATIO", "most")
	t.Setenv("IDLE_WINDOW", "a day")
	t.Setenv("TIME_ZONE", "Mars/Olympus")

	cfg := Load()
	assert.Equal(t, 8, cfg.ArrivalWorkers)
	assert.Equal(t, 0.7, cfg.LowMileageRatio)
	assert.Equal(t, 24*time.Hour, cfg.IdleWindow)
	assert.Equal(t, time.UTC, cfg.Location())
}
