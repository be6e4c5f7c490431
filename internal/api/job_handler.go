package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/engine"
	"github.com/shaiso/skilldag/internal/telemetry"
)

// maxBodyBytes — предел размера тела запроса.
const maxBodyBytes int64 = 1 << 20

// CreateJob запускает DAG.
// POST /api/v1/jobs[?async=true]
//
// Синхронный режим выполняет DAG в рамках запроса и возвращает 200
// с результатами. Async режим сохраняет job в статусе PENDING,
// ставит его в очередь и сразу возвращает 202.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	spec := req.ToSpec()
	if err := engine.ValidateWithSkills(&spec, h.catalog.Has); err != nil {
		HandleError(w, h.logger, err, "")
		return
	}

	async, err := parseBool(r.URL.Query().Get("async"))
	if err != nil {
		BadRequest(w, "invalid async parameter")
		return
	}

	clientIP := ClientIP(r)
	if !h.allow(w, r, clientIP) {
		return
	}

	job := domain.NewJob(spec, h.jobTTL)
	job.ClientIP = clientIP
	log := telemetry.WithJobID(telemetry.FromContext(r.Context()), job.ID.String())

	if async {
		h.enqueue(w, r, job, log)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.syncTimeout)
	defer cancel()

	if err := h.runner.Run(ctx, job); err != nil {
		HandleError(w, h.logger, err, "")
		return
	}

	Success(w, JobFromDomain(job))
}

// enqueue сохраняет job и передаёт его на выполнение в фоне.
//
// Без брокера (или если публикация не удалась) job выполняется
// в горутине API-процесса.
func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, job *domain.Job, log *slog.Logger) {
	if err := h.store.Save(r.Context(), job); err != nil {
		InternalError(w, h.logger, fmt.Errorf("save job: %w", err))
		return
	}

	// Снимок до запуска: дальше job меняет runner
	resp := JobFromDomain(job)

	queued := false
	if h.publisher != nil {
		if err := h.publisher.PublishJobPending(r.Context(), job.ID); err != nil {
			log.Warn("failed to publish job, running in process", "error", err)
		} else {
			queued = true
		}
	}

	if !queued {
		h.runInBackground(job, log)
	}

	log.Info("job accepted", "queued", queued, "nodes", len(job.Spec.Nodes))
	Accepted(w, resp)
}

// runInBackground выполняет job в горутине API-процесса.
func (h *Handler) runInBackground(job *domain.Job, log *slog.Logger) {
	h.background.Add(1)
	go func() {
		defer h.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.syncTimeout)
		defer cancel()

		if err := h.runner.Run(ctx, job); err != nil {
			log.Error("background job failed", "error", err)
		}
	}()
}

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job ID")
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if HandleError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(job))
}

// allow проверяет дневной лимит клиента и выставляет заголовки X-RateLimit-*.
// Возвращает false, если ответ уже отправлен.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, clientIP string) bool {
	decision, err := h.limiter.Allow(r.Context(), clientIP)
	if err != nil {
		InternalError(w, h.logger, fmt.Errorf("rate limit: %w", err))
		return false
	}

	if decision.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}

	if !decision.Allowed {
		telemetry.RateLimitedTotal.Inc()
		telemetry.FromContext(r.Context()).Info("rate limited", "client_ip", clientIP, "limit", decision.Limit)
		TooManyRequests(w, decision.RetryAfter(time.Now()))
		return false
	}

	return true
}

// decodeJSON читает тело запроса в dst.
// Неизвестные поля и данные после JSON-объекта — ошибка 400.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			PayloadTooLarge(w, maxBodyBytes)
		case errors.Is(err, io.EOF):
			BadRequest(w, "request body is empty")
		default:
			BadRequest(w, "invalid JSON body: "+err.Error())
		}
		return false
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid JSON body: unexpected data after object")
		return false
	}

	return true
}

// parseBool разбирает флаг из query; пусто — false.
func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
