package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/tastebuds")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 24, cfg.RoomTTLHours)
		assert.Equal(t, 120, cfg.RateLimitPerMin)
		assert.Equal(t, 30, cfg.GuestRateLimitPerMin)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, 24*time.Hour, cfg.RoomTTL())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/tastebuds")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("PORT", "9090")
		t.Setenv("ROOM_TTL_HOURS", "48")
		t.Setenv("RATE_LIMIT_PER_MIN", "30")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Addr())
		assert.Equal(t, 48*time.Hour, cfg.RoomTTL())
		assert.Equal(t, 30, cfg.RateLimitPerMin)
	})

	t.Run("missing database url fails", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "placeholder")
		os.Unsetenv("DATABASE_URL")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:                 8080,
			DatabaseURL:          "postgres://localhost/tastebuds",
			RedisURL:             "redis://localhost:6379",
			RoomTTLHours:         24,
			RateLimitPerMin:      120,
			GuestRateLimitPerMin: 30,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate(false))
		assert.NoError(t, base().Validate(true))
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		cfg := base()
		cfg.RoomTTLHours = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("non-positive rate limit", func(t *testing.T) {
		cfg := base()
		cfg.RateLimitPerMin = -1
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("non-positive guest rate limit", func(t *testing.T) {
		cfg := base()
		cfg.GuestRateLimitPerMin = 0
		assert.Error(t, cfg.Validate(false))
	})
}
