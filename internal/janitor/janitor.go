// Package janitor удаляет истёкшие записи jobs по расписанию.
//
// Redis удаляет ключи сам по TTL; для Postgres и хранилища в памяти
// истёкшие записи только скрываются от Get, место освобождает janitor.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
)

// DefaultSchedule — расписание очистки по умолчанию.
const DefaultSchedule = "@every 10m"

// ErrNoPurger — хранилище не умеет удалять истёкшие записи.
var ErrNoPurger = errors.New("janitor requires a store that supports purging")

// scheduleParser — 5-польные cron-выражения и дескрипторы (@every, @hourly).
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule проверяет и разбирает расписание JANITOR_SCHEDULE.
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Janitor периодически вызывает PurgeExpired.
type Janitor struct {
	purger   store.Purger
	spec     string
	schedule cron.Schedule
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// Config — конфигурация Janitor.
type Config struct {
	Purger store.Purger

	// Schedule — cron-выражение или дескриптор (default: "@every 10m").
	Schedule string

	Logger *slog.Logger
}

// New создаёт Janitor.
func New(cfg Config) (*Janitor, error) {
	if cfg.Purger == nil {
		return nil, ErrNoPurger
	}

	spec := cfg.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}

	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		purger:   cfg.Purger,
		spec:     spec,
		schedule: schedule,
		logger:   logger.With("component", "janitor"),
	}, nil
}

// Next возвращает время следующей очистки после from.
func (j *Janitor) Next(from time.Time) time.Time {
	return j.schedule.Next(from)
}

// Sweep выполняет одну очистку.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()

	purged, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired jobs: %w", err)
	}

	telemetry.PurgedJobsTotal.Add(float64(purged))
	j.logger.Info("purged expired jobs",
		"count", purged,
		"duration", time.Since(start),
	)
	return purged, nil
}

// Start запускает очистку по расписанию. Не блокирует.
// ctx ограничивает каждую очистку; после его отмены janitor останавливается.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return
	}

	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cronLogger{j.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{j.logger})),
	)
	c.Schedule(j.schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("janitor sweep failed", "error", err)
		}
	}))
	c.Start()
	j.cron = c

	j.logger.Info("janitor started", "schedule", j.spec, "next", j.Next(time.Now()))

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
}

// Stop останавливает расписание и ждёт завершения текущей очистки.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	j.logger.Info("janitor stopped")
}

// cronLogger направляет логи cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
