package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shaiso/skilldag/internal/domain"
)

// jobKeyPrefix — префикс ключей jobs.
const jobKeyPrefix = "job:"

// RedisStore — хранилище jobs в Redis с TTL на ключе.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore создаёт RedisStore поверх готового клиента.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL подключается к Redis по URL и проверяет соединение.
func NewRedisStoreFromURL(ctx context.Context, redisURL string) (*RedisStore, error) {
	client, err := NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client), nil
}

// NewRedisClient создаёт клиента Redis по URL и проверяет соединение.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Save реализует JobStore.
func (s *RedisStore) Save(ctx context.Context, job *domain.Job) error {
	ttl := ttlFor(job, time.Now())
	if ttl <= 0 {
		// Запись уже просрочена: сохранять нечего
		return s.client.Del(ctx, jobKey(job.ID)).Err()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := s.client.Set(ctx, jobKey(job.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set job: %w", err)
	}
	return nil
}

// Get реализует JobStore.
func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Client возвращает клиента Redis (для ratelimit на том же соединении).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close закрывает соединение.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func jobKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}
