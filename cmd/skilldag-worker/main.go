// skilldag-worker — выполняет async jobs из RabbitMQ.
//
// Worker:
//   - Получает job.pending из очереди jobs.pending
//   - Загружает job из хранилища и выполняет DAG узел за узлом
//   - Повторяет временные ошибки модели по RETRY_* политике
//   - Сохраняет прогресс после каждого узла
//
// Workers масштабируются горизонтально. Хранилище должно быть общим
// с API (redis или postgres).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/skilldag/internal/config"
	"github.com/shaiso/skilldag/internal/llm"
	"github.com/shaiso/skilldag/internal/mq"
	"github.com/shaiso/skilldag/internal/skills"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
	"github.com/shaiso/skilldag/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("skilldag-worker")
	logger.Info("starting skilldag-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.StoreBackend == store.BackendMemory {
		logger.Error("worker needs a shared job store, set STORE_BACKEND=redis or postgres")
		os.Exit(1)
	}

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

	catalog := skills.NewCatalog()
	if cfg.SkillsDir != "" {
		catalog, err = skills.Load(cfg.SkillsDir)
		if err != nil {
			logger.Error("failed to load skills", "dir", cfg.SkillsDir, "error", err)
			os.Exit(1)
		}
		logger.Info("skills loaded", "dir", cfg.SkillsDir, "count", catalog.Len())
	}

	// RabbitMQ
	mqURL := cfg.RabbitMQURL
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
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

	w := worker.New(worker.Config{
		Store:  jobStore,
		Runner: runner,
		Conn:   mqConn,
		Logger: logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("broker disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	// Stop дожидается текущего job
	w.Stop()
	logger.Info("skilldag-worker stopped")
}
