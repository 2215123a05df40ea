package ratelimit

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables enabling the shared Redis backend. Without
// them, limits are enforced per process in memory.
const (
	EnvRedisAddr     = "RATE_LIMIT_REDIS_ADDR"
	EnvRedisPassword = "RATE_LIMIT_REDIS_PASSWORD"
	EnvRedisDB       = "RATE_LIMIT_REDIS_DB"
	EnvRedisPrefix   = "RATE_LIMIT_REDIS_PREFIX"
)

const defaultRedisPrefix = "dontask:rl"

// SettingsConfig captures the rate limit backend settings snapshot.
type SettingsConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig loads the current backend settings from the
// environment. Redis is enabled by the presence of an address.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		RedisAddr:     strings.TrimSpace(os.Getenv(EnvRedisAddr)),
		RedisPassword: strings.TrimSpace(os.Getenv(EnvRedisPassword)),
		RedisPrefix:   strings.TrimSpace(os.Getenv(EnvRedisPrefix)),
	}
	cfg.RedisEnabled = cfg.RedisAddr != ""
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = defaultRedisPrefix
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRedisDB)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			cfg.RedisDB = parsed
		}
	}
	return cfg
}
