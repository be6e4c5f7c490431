// Package ratelimit — дневной лимит запросов на клиента.
//
// Счётчик живёт под ключом ratelimit:<key>:<YYYY-MM-DD> (день по UTC)
// и сбрасывается в полночь UTC.
package ratelimit

import (
	"context"
	"time"
)

// DefaultDailyLimit — лимит запросов в день по умолчанию.
const DefaultDailyLimit = 50

// keyPrefix — префикс ключей счётчиков.
const keyPrefix = "ratelimit:"

// Decision — результат проверки лимита.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter возвращает время до сброса счётчика.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.IsZero() || !now.Before(d.ResetAt) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter — ограничитель запросов.
//
// Allow учитывает запрос и сообщает, укладывается ли он в лимит.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Unlimited — Limiter без ограничений (DAILY_LIMIT <= 0).
type Unlimited struct{}

// Allow всегда разрешает запрос.
func (Unlimited) Allow(ctx context.Context, key string) (Decision, error) {
	return Decision{Allowed: true, Limit: 0, Remaining: -1}, nil
}

// dayWindow возвращает ключ счётчика и момент его сброса.
func dayWindow(key string, now time.Time) (string, time.Time) {
	now = now.UTC()
	day := now.Format(time.DateOnly)
	reset := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return keyPrefix + key + ":" + day, reset
}

// decide строит Decision по значению счётчика после инкремента.
func decide(count int64, limit int, reset time.Time) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   reset,
	}
}
