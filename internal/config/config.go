package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath             = "CONFIG_PATH"
	EnvDBConnection           = "DB_CONNECTION"
	EnvJWTSecret              = "JWT_SECRET"
	EnvJWTExpiry              = "JWT_EXPIRY"
	EnvSessionTokenExpiryDays = "SESSION_TOKEN_EXPIRY_DAYS"
	EnvScheduleInterval       = "SCHEDULE_INTERVAL"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 60 * time.Minute

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// Session and scheduler defaults applied when config is absent or invalid.
const (
	defaultSessionTokenExpiryDays = 7
	defaultScheduleInterval       = 24 * time.Hour
)

// SessionConfig holds player session token settings.
type SessionConfig struct {
	TokenExpiryDays int `yaml:"token-expiry-days"`
}

// TokenExpiry returns the token lifetime as a duration.
func (c SessionConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryDays) * 24 * time.Hour
}

// LoadSessionConfig loads player session settings from the YAML config file.
func LoadSessionConfig(configPath string) (SessionConfig, error) {
	// fileConfig maps the YAML fields needed for session settings.
	type fileConfig struct {
		Session SessionConfig `yaml:"session"`
	}

	result := SessionConfig{TokenExpiryDays: defaultSessionTokenExpiryDays}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil && cfg.Session.TokenExpiryDays > 0 {
			result = cfg.Session
		}
	}

	if daysRaw := strings.TrimSpace(os.Getenv(EnvSessionTokenExpiryDays)); daysRaw != "" {
		if days, errParse := strconv.Atoi(daysRaw); errParse == nil && days > 0 {
			result.TokenExpiryDays = days
		}
	}
	return result, nil
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoadServerConfig loads listener settings from the YAML config file.
// Zero values mean the caller's defaults apply.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	var result ServerConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &result); errUnmarshal != nil {
			return ServerConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}
	if result.Port < 0 || result.Port > 65535 {
		result.Port = 0
	}
	return result, nil
}

// SchedulerConfig holds the daily question scheduler settings.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoadSchedulerConfig loads scheduler settings from the YAML config file.
func LoadSchedulerConfig(configPath string) (SchedulerConfig, error) {
	// fileConfig maps the YAML fields needed for scheduler settings.
	type fileConfig struct {
		Scheduler SchedulerConfig `yaml:"scheduler"`
	}

	result := SchedulerConfig{Interval: defaultScheduleInterval}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil && cfg.Scheduler.Interval > 0 {
			result = cfg.Scheduler
		}
	}

	if intervalRaw := strings.TrimSpace(os.Getenv(EnvScheduleInterval)); intervalRaw != "" {
		if interval, errParse := time.ParseDuration(intervalRaw); errParse == nil && interval > 0 {
			result.Interval = interval
		}
	}

	if result.Interval <= 0 {
		result.Interval = defaultScheduleInterval
	}
	return result, nil
}
