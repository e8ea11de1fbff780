package ratelimit

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// FixedWindowLimiter limits requests per key in a fixed time window. Counters
// are kept in-process; the portal runs as a single instance, so there is no
// shared backend to coordinate with.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	slot     int64
	counters map[string]int
}

// NewFixedWindowLimiter creates an in-memory limiter.
func NewFixedWindowLimiter(limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &FixedWindowLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]int),
	}, nil
}

// Allow returns true when the key is within quota for the current window.
func (l *FixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs

	l.mu.Lock()
	defer l.mu.Unlock()
	// Rolling over the slot drops every key's counter at once, which keeps
	// the map from growing with one entry per client forever.
	if slot != l.slot {
		l.slot = slot
		l.counters = make(map[string]int)
	}
	l.counters[key]++
	return l.counters[key] <= l.limit
}
