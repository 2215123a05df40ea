// Package ratelimit enforces per-endpoint-class request limits for the
// player and admin HTTP APIs.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisRetryCooldown is how long the manager stays on the in-memory
// limiter after a Redis failure before probing Redis again.
const redisRetryCooldown = 30 * time.Second

// SettingsProvider supplies the latest backend settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisOptions struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager enforces the per-class request limits. With Redis configured
// the counters are shared across instances; otherwise, or while Redis
// is down, each process falls back to its own in-memory window.
type Manager struct {
	provider SettingsProvider
	now      func() time.Time
	memory   Limiter
	newRedis RedisClientFactory

	mu            sync.Mutex
	redisLimiter  *RedisLimiter
	redisOpts     redisOptions
	redisDownTill time.Time
}

// NewManager constructs a Manager. Nil arguments select the defaults:
// environment-driven settings, the wall clock, and real Redis clients.
func NewManager(provider SettingsProvider, now func() time.Time, newRedis RedisClientFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if now == nil {
		now = time.Now
	}
	if newRedis == nil {
		newRedis = redis.NewClient
	}
	return &Manager{
		provider: provider,
		now:      now,
		memory:   NewMemoryLimiter(),
		newRedis: newRedis,
	}
}

// Allow checks one request against the key's limit. A zero limit or
// empty key always passes.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.now()
	cfg := m.provider()

	if cfg.RedisEnabled {
		if result, ok := m.allowRedis(ctx, key, limit, now, cfg); ok {
			return result, nil
		}
	}
	return m.memory.Allow(ctx, key, limit, now)
}

// allowRedis tries the shared backend. ok=false means the caller should
// fall back to the in-memory limiter.
func (m *Manager) allowRedis(ctx context.Context, key string, limit int, now time.Time, cfg SettingsConfig) (Result, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.redisDown(now) {
		return Result{}, false
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.markRedisDown(errEnsure, now)
		return Result{}, false
	}
	if limiter == nil {
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, limit, now)
	if errAllow != nil {
		m.markRedisDown(errAllow, now)
		return Result{}, false
	}
	return result, true
}

func (m *Manager) redisDown(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisDownTill.IsZero() {
		return false
	}
	if now.Before(m.redisDownTill) {
		return true
	}
	m.redisDownTill = time.Time{}
	return false
}

func (m *Manager) markRedisDown(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.redisDownTill.IsZero() && now.Before(m.redisDownTill) {
		return
	}
	m.redisDownTill = now.Add(redisRetryCooldown)
	log.WithError(err).Warn("rate limit: redis backend down, using in-memory limits")
}

// ensureRedis returns the shared limiter, rebuilding the client when
// the configured address, credentials, or prefix changed.
func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	opts := redisOptions{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if opts.db < 0 {
		opts.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil && m.redisOpts == opts {
		return m.redisLimiter, nil
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.client.Close()
		m.redisLimiter = nil
	}

	client := m.newRedis(&redis.Options{
		Addr:     opts.addr,
		Password: opts.password,
		DB:       opts.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisLimiter(client, opts.prefix)
	m.redisOpts = opts
	return m.redisLimiter, nil
}
