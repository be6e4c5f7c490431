package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
)

// Бэкенды хранилища.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// JobStore — хранилище jobs.
type JobStore interface {
	// Save сохраняет job целиком. TTL берётся из job.ExpiresAt.
	Save(ctx context.Context, job *domain.Job) error

	// Get возвращает job по ID или ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// Purger — хранилище, которому нужна явная очистка просроченных записей.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Config — конфигурация хранилища.
type Config struct {
	Backend  string
	DBURL    string
	RedisURL string
}

// New создаёт JobStore по cfg.Backend.
// Второе значение закрывает соединения бэкенда.
func New(ctx context.Context, cfg Config) (JobStore, func(), error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), func() {}, nil

	case BackendRedis:
		s, err := NewRedisStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case BackendPostgres:
		pool, err := NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		s := NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// ttlFor возвращает оставшееся время жизни job.
// Записи без ExpiresAt живут domain.DefaultJobTTL.
func ttlFor(job *domain.Job, now time.Time) time.Duration {
	if job.ExpiresAt.IsZero() {
		return domain.DefaultJobTTL
	}
	return job.ExpiresAt.Sub(now)
}
