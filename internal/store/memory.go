package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
)

// MemoryStore — хранилище jobs в памяти процесса.
//
// Jobs хранятся сериализованными, чтобы вызывающий код не мог
// изменить сохранённую копию через указатель.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]memoryEntry),
		now:  time.Now,
	}
}

// Save реализует JobStore.
func (s *MemoryStore) Save(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	expiresAt := job.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(domain.DefaultJobTTL)
	}

	s.mu.Lock()
	s.jobs[job.ID] = memoryEntry{data: data, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Get реализует JobStore. Просроченные записи удаляются при чтении.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	entry, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	var job domain.Job
	if err := json.Unmarshal(entry.data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// PurgeExpired удаляет просроченные записи и возвращает их количество.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, entry := range s.jobs {
		if !now.Before(entry.expiresAt) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// Len возвращает количество записей, включая ещё не удалённые просроченные.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
