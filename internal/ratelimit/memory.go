package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter — счётчики в памяти процесса.
type MemoryLimiter struct {
	limit int
	now   func() time.Time

	mu       sync.Mutex
	counters map[string]memoryCounter
}

type memoryCounter struct {
	count   int64
	resetAt time.Time
}

// NewMemoryLimiter создаёт MemoryLimiter с дневным лимитом.
func NewMemoryLimiter(limit int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:    limit,
		now:      time.Now,
		counters: make(map[string]memoryCounter),
	}
}

// Allow реализует Limiter.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	counterKey, reset := dayWindow(key, now)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Счётчики прошлых дней больше не нужны
	for k, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, k)
		}
	}

	c := l.counters[counterKey]
	c.count++
	c.resetAt = reset
	l.counters[counterKey] = c

	return decide(c.count, l.limit, reset), nil
}
