package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/skilldag/internal/domain"
)

// schema — таблица jobs. Job целиком лежит в payload,
// остальные колонки нужны для фильтрации и очистки.
const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id         uuid PRIMARY KEY,
		status     text NOT NULL,
		payload    jsonb NOT NULL,
		client_ip  text,
		created_at timestamptz NOT NULL,
		expires_at timestamptz NOT NULL
	);
	CREATE INDEX IF NOT EXISTS jobs_expires_at_idx ON jobs (expires_at);
`

// PostgresStore — хранилище jobs в Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт новый PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema создаёт таблицу jobs, если её нет.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	return nil
}

// Save реализует JobStore (upsert).
func (s *PostgresStore) Save(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	query := `
		INSERT INTO jobs (id, status, payload, client_ip, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    payload = EXCLUDED.payload,
		    expires_at = EXCLUDED.expires_at
	`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		payload,
		nullString(job.ClientIP),
		job.CreatedAt,
		job.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// Get реализует JobStore. Просроченные записи не возвращаются.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT payload
		FROM jobs
		WHERE id = $1 AND expires_at > now()
	`

	var payload []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// PurgeExpired удаляет просроченные jobs.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
