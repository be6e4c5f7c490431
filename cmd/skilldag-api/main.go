// skilldag-api — HTTP API для запуска DAG из промптов.
//
// API:
//   - Принимает DAG до 8 узлов, проверяет его и дневной лимит клиента
//   - Выполняет DAG синхронно или ставит job в очередь (?async=true)
//   - Отдаёт статус и результаты job по ID, пока не истёк TTL
//
// Без брокера async jobs выполняются в процессе API.
// Для хранилища в памяти здесь же работает janitor.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/skilldag/internal/api"
	"github.com/shaiso/skilldag/internal/config"
	"github.com/shaiso/skilldag/internal/janitor"
	"github.com/shaiso/skilldag/internal/llm"
	"github.com/shaiso/skilldag/internal/mq"
	"github.com/shaiso/skilldag/internal/ratelimit"
	"github.com/shaiso/skilldag/internal/skills"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
	"github.com/shaiso/skilldag/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("skilldag-api")
	logger.Info("starting skilldag-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище jobs
	jobStore, closeStore, err := store.New(ctx, store.Config{
		Backend:  cfg.StoreBackend,
		DBURL:    cfg.DBURL,
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		logger.Error("failed to open job store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("job store ready", "backend", cfg.StoreBackend)

	completer, err := llm.New(llm.Config{
		Provider:   cfg.LLMProvider,
		APIKey:     cfg.AnthropicAPIKey,
		BaseURL:    cfg.AnthropicURL,
		Model:      cfg.LLMModel,
		MaxTokens:  cfg.LLMMaxTokens,
		MaxRetries: cfg.LLMMaxRetries,
		Timeout:    cfg.NodeTimeout,
	})
	if err != nil {
		logger.Error("failed to create llm client", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	}

	catalog, err := loadCatalog(cfg.SkillsDir, logger)
	if err != nil {
		logger.Error("failed to load skills", "dir", cfg.SkillsDir, "error", err)
		os.Exit(1)
	}

	limiter := newLimiter(ctx, cfg, jobStore, logger)

	// RabbitMQ (опционально)
	var publisher api.JobPublisher
	var broker api.BrokerStatus
	if cfg.RabbitMQURL != "" && !cfg.PublishesJobs() {
		logger.Warn("RABBITMQ_URL ignored: worker cannot read the memory store, async jobs run in process",
			"store", cfg.StoreBackend)
	}
	if cfg.PublishesJobs() {
		mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, async jobs run in process", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
			broker = mqConn
		}
	}

	runner := worker.NewRunner(worker.RunnerConfig{
		Store:     jobStore,
		Completer: completer,
		Catalog:   catalog,
		Retry: worker.RetryPolicy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			Backoff:      cfg.RetryBackoff,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
		},
		NodeTimeout: cfg.NodeTimeout,
		Logger:      logger,
	})

	handler := api.NewHandler(api.Config{
		Store:       jobStore,
		Runner:      runner,
		Limiter:     limiter,
		Publisher:   publisher,
		Broker:      broker,
		Catalog:     catalog,
		JobTTL:      cfg.JobTTL,
		SyncTimeout: cfg.SyncTimeout,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	// Хранилище в памяти чистит janitor этого процесса
	if ms, ok := jobStore.(*store.MemoryStore); ok {
		j, err := janitor.New(janitor.Config{
			Purger:   ms,
			Schedule: cfg.JanitorSchedule,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to create janitor", "error", err)
			os.Exit(1)
		}
		j.Start(ctx)
		defer j.Stop()
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := handler.Wait(shutdownCtx); err != nil {
		logger.Warn("background jobs still running at shutdown", "error", err)
	}

	logger.Info("skilldag-api stopped")
}

// loadCatalog загружает skills; пустой dir — пустой каталог.
func loadCatalog(dir string, logger *slog.Logger) (*skills.Catalog, error) {
	if dir == "" {
		return skills.NewCatalog(), nil
	}
	catalog, err := skills.Load(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("skills loaded", "dir", dir, "count", catalog.Len())
	return catalog, nil
}

// newLimiter выбирает реализацию дневного лимита.
//
// Счётчики в Redis общие для всех реплик API; без Redis каждая
// реплика считает сама.
func newLimiter(ctx context.Context, cfg *config.Config, jobStore store.JobStore, logger *slog.Logger) ratelimit.Limiter {
	if cfg.DailyLimit <= 0 {
		logger.Info("daily rate limit disabled")
		return ratelimit.Unlimited{}
	}

	var client *redis.Client
	if rs, ok := jobStore.(*store.RedisStore); ok {
		client = rs.Client()
	} else if cfg.RedisURL != "" {
		c, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis not available, rate limit counters kept in memory", "error", err)
		} else {
			client = c
		}
	}

	if client != nil {
		logger.Info("daily rate limit", "limit", cfg.DailyLimit, "backend", "redis")
		return ratelimit.NewRedisLimiter(client, cfg.DailyLimit)
	}

	logger.Info("daily rate limit", "limit", cfg.DailyLimit, "backend", "memory")
	return ratelimit.NewMemoryLimiter(cfg.DailyLimit)
}
