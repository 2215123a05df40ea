package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a sliding-window in-memory rate limiter.
// Each key keeps the timestamps of its recent hits; pruning and the
// count check happen under one mutex hold, so the check-and-increment
// is atomic.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
	}
}

// Allow checks whether the request fits inside the sliding window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	cutoff := now.Add(-Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.windows[key]
	pruned := hits[:0]
	for _, hit := range hits {
		if hit.After(cutoff) {
			pruned = append(pruned, hit)
		}
	}

	if len(pruned) >= limit {
		l.windows[key] = pruned
		return Result{Allowed: false, Remaining: 0, Reset: pruned[0].Add(Window)}, nil
	}

	pruned = append(pruned, now)
	l.windows[key] = pruned
	return Result{Allowed: true, Remaining: limit - len(pruned), Reset: pruned[0].Add(Window)}, nil
}
