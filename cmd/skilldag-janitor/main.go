// skilldag-janitor — удаляет истёкшие jobs из Postgres по расписанию
// JANITOR_SCHEDULE. Redis удаляет ключи сам, хранилище в памяти
// чистит janitor внутри skilldag-api.
//
// С флагом -once выполняет одну очистку и выходит (для cron хоста
// или Kubernetes CronJob).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/skilldag/internal/config"
	"github.com/shaiso/skilldag/internal/janitor"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
)

func main() {
	once := flag.Bool("once", false, "purge once and exit")
	metricsAddr := flag.String("metrics-addr", ":8083", "address for /healthz and /metrics")
	flag.Parse()

	logger := telemetry.SetupLogger("skilldag-janitor")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	purger, ok := jobStore.(store.Purger)
	if !ok {
		logger.Info("store expires jobs by itself, nothing to do", "backend", cfg.StoreBackend)
		return
	}

	j, err := janitor.New(janitor.Config{
		Purger:   purger,
		Schedule: cfg.JanitorSchedule,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create janitor", "error", err)
		os.Exit(1)
	}

	if *once {
		if _, err := j.Sweep(ctx); err != nil {
			logger.Error("purge failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	go func() {
		logger.Info("listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	j.Start(ctx)

	<-ctx.Done()
	j.Stop()
	logger.Info("skilldag-janitor stopped")
}
