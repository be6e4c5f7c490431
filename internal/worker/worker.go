package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/mq"
	"github.com/shaiso/skilldag/internal/store"
)

// defaultPrefetch — jobs выполняются по одному на consumer.
const defaultPrefetch = 1

// Worker выполняет jobs, поставленные в очередь в async режиме.
//
// API сохраняет job в статусе PENDING и публикует job.pending;
// Worker забирает сообщение, загружает job из хранилища и выполняет
// его через Runner. Workers масштабируются горизонтально.
type Worker struct {
	store  store.JobStore
	runner *Runner
	conn   *mq.Connection

	consumer *mq.Consumer
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Store  store.JobStore
	Runner *Runner
	Conn   *mq.Connection

	// Prefetch — сколько jobs один worker держит одновременно (default: 1).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		store:    cfg.Store,
		runner:   cfg.Runner,
		conn:     cfg.Conn,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Start запускает consumer очереди jobs.pending.
func (w *Worker) Start(ctx context.Context) error {
	if w.conn == nil {
		return errors.New("worker requires a RabbitMQ connection")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsPending),
		Handler:  w.handleJobPending,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started", "prefetch", w.prefetch)
	return nil
}

// Stop останавливает Worker и ждёт завершения текущего job.
// Незавершённые узлы текущего job помечаются SKIPPED ("job cancelled").
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// handleJobPending обрабатывает сообщение job.pending.
func (w *Worker) handleJobPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobPendingPayload](&delivery.Message)
	if err != nil {
		return mq.Permanent(fmt.Errorf("parse job.pending payload: %w", err))
	}

	err = w.ProcessJob(ctx, payload.JobID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrJobNotPending):
		// Job истёк или его уже взял другой worker — подтверждаем
		w.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
		return nil
	default:
		return err
	}
}

// ProcessJob загружает job и выполняет его, если он ещё в статусе PENDING.
func (w *Worker) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("get job: %w", err)
	}

	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrJobNotPending, jobID, job.Status)
	}

	return w.runner.Run(ctx, job)
}
