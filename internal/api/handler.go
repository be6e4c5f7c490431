package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/ratelimit"
	"github.com/shaiso/skilldag/internal/skills"
	"github.com/shaiso/skilldag/internal/store"
)

// defaultSyncTimeout — сколько синхронный запрос ждёт выполнения DAG.
const defaultSyncTimeout = 5 * time.Minute

// JobRunner выполняет job до конца (worker.Runner).
type JobRunner interface {
	Run(ctx context.Context, job *domain.Job) error
}

// JobPublisher ставит job в очередь (mq.Publisher).
type JobPublisher interface {
	PublishJobPending(ctx context.Context, jobID uuid.UUID) error
}

// BrokerStatus сообщает состояние соединения с брокером (mq.Connection).
type BrokerStatus interface {
	IsConnected() bool
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store       store.JobStore
	runner      JobRunner
	limiter     ratelimit.Limiter
	publisher   JobPublisher
	broker      BrokerStatus
	catalog     *skills.Catalog
	jobTTL      time.Duration
	syncTimeout time.Duration
	corsOrigins []string
	logger      *slog.Logger
	startedAt   time.Time

	// background — async jobs, выполняемые в процессе API (без брокера).
	background sync.WaitGroup
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store  store.JobStore
	Runner JobRunner

	// Limiter — дневной лимит по IP (nil — без лимита).
	Limiter ratelimit.Limiter

	// Publisher — очередь для async jobs (nil — async job выполняется в процессе API).
	Publisher JobPublisher

	// Broker — для /healthz (опционально).
	Broker BrokerStatus

	Catalog *skills.Catalog

	// JobTTL — время жизни job в хранилище (default: 1h).
	JobTTL time.Duration

	// SyncTimeout — предел выполнения синхронного запроса (default: 5m).
	SyncTimeout time.Duration

	// CORSOrigins — разрешённые Origin; "*" — любой.
	CORSOrigins []string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = skills.NewCatalog()
	}

	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = domain.DefaultJobTTL
	}

	syncTimeout := cfg.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = defaultSyncTimeout
	}

	return &Handler{
		store:       cfg.Store,
		runner:      cfg.Runner,
		limiter:     limiter,
		publisher:   cfg.Publisher,
		broker:      cfg.Broker,
		catalog:     catalog,
		jobTTL:      jobTTL,
		syncTimeout: syncTimeout,
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// Wait ждёт завершения async jobs, запущенных в процессе API.
// Возвращает ctx.Err(), если ctx истёк раньше.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
