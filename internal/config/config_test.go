package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/ticket-rush/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "ticketrush")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("BCRYPT_COST", "10")
}

func TestLoadReadsEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOCK_WAIT_TIMEOUT_SEC", "3")

	cfg := config.Load()
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ticketrush", cfg.DBName)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 3, cfg.LockWaitSec)
}

func TestLoadDefaultsLockWait(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOCK_WAIT_TIMEOUT_SEC", "")

	cfg := config.Load()
	assert.Equal(t, 5, cfg.LockWaitSec)
}

func TestLoadCacheConfigDefaults(t *testing.T) {
	// Pin the cache vars so ambient environment cannot leak in.
	t.Setenv("CACHE_ENABLED", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CACHE_PREFIX", "")
	t.Setenv("CACHE_MAX_BODY_BYTES", "")

	cfg := config.LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.Equal(t, "cache", cfg.Prefix)
	assert.Equal(t, 1<<20, cfg.MaxBodyBytes)
}

func TestLoadRateLimitConfigAppliesFloors(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := config.LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	// TTL is raised to cover several refill intervals.
	assert.Equal(t, 10*time.Second, cfg.TTL)
}
