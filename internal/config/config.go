package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	GoogleAPIKey         string `env:"GOOGLE_API_KEY"`
	RoomTTLHours         int    `env:"ROOM_TTL_HOURS" envDefault:"24"`
	RateLimitPerMin      int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	GuestRateLimitPerMin int    `env:"GUEST_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

// RoomTTL is how long a room may sit without any mutation before
// the cleanup job removes it.
func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.RoomTTLHours <= 0 {
		return fmt.Errorf("ROOM_TTL_HOURS must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}
	if c.GuestRateLimitPerMin <= 0 {
		return fmt.Errorf("GUEST_RATE_LIMIT_PER_MIN must be positive")
	}

	if isProduction {
		if c.GoogleAPIKey == "" {
			log.Warn().Msg("GOOGLE_API_KEY is empty in production: restaurant search disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
