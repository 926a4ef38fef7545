package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Limiter decides whether one more hit for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// MemoryLimiter is a per-process sliding window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	limits  map[string][]time.Time
	window  time.Duration
	maxHits int
	now     func() time.Time
}

func NewLimiter(window time.Duration, maxHits int) *MemoryLimiter {
	return &MemoryLimiter{
		limits:  make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	// Clean old entries
	if hits, exists := l.limits[key]; exists {
		valid := hits[:0]
		for _, hit := range hits {
			if hit.After(windowStart) {
				valid = append(valid, hit)
			}
		}
		if len(valid) == 0 {
			delete(l.limits, key)
		} else {
			l.limits[key] = valid
		}
	}

	if len(l.limits[key]) >= l.maxHits {
		return false
	}

	l.limits[key] = append(l.limits[key], now)
	return true
}

// Counter increments a key that expires after window and returns the new
// count. The redis service satisfies it.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter is a fixed window limiter shared by every gateway instance
// pointing at the same Redis. It fails open when the counter errors.
type RedisLimiter struct {
	counter Counter
	prefix  string
	window  time.Duration
	maxHits int
	now     func() time.Time
}

func NewRedisLimiter(counter Counter, prefix string, window time.Duration, maxHits int) *RedisLimiter {
	return &RedisLimiter{
		counter: counter,
		prefix:  prefix,
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	count, err := l.counter.Incr(ctx, l.windowKey(key), l.window)
	if err != nil {
		return true
	}
	return count <= int64(l.maxHits)
}

// windowKey buckets key by the start of the current window.
func (l *RedisLimiter) windowKey(key string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return l.prefix + ":" + key + ":" + strconv.FormatInt(bucket, 10)
}
