package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/engine"
	"github.com/shaiso/skilldag/internal/llm"
	"github.com/shaiso/skilldag/internal/skills"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
)

// defaultNodeTimeout — таймаут одного вызова модели по умолчанию.
const defaultNodeTimeout = 60 * time.Second

// Runner выполняет DAG одного job.
//
// Узлы выполняются строго последовательно в порядке уровней.
// Узел, у которого зависимость упала или пропущена, помечается SKIPPED
// и в модель не отправляется. Job сохраняется после каждого перехода
// узла, поэтому GET /jobs/{id} видит прогресс.
type Runner struct {
	store       store.JobStore
	completer   llm.Completer
	catalog     *skills.Catalog
	retry       RetryPolicy
	nodeTimeout time.Duration
	logger      *slog.Logger
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	Store     store.JobStore
	Completer llm.Completer

	// Catalog — каталог skills (опционально).
	Catalog *skills.Catalog

	// Retry — политика повторов (по умолчанию без повторов).
	Retry RetryPolicy

	// NodeTimeout — таймаут вызова модели (default: 60s).
	NodeTimeout time.Duration

	Logger *slog.Logger
}

// NewRunner создаёт новый Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	nodeTimeout := cfg.NodeTimeout
	if nodeTimeout <= 0 {
		nodeTimeout = defaultNodeTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = skills.NewCatalog()
	}

	return &Runner{
		store:       cfg.Store,
		completer:   cfg.Completer,
		catalog:     catalog,
		retry:       cfg.Retry,
		nodeTimeout: nodeTimeout,
		logger:      logger,
	}
}

// Run выполняет job до конца и сохраняет итог.
//
// Ошибки узлов не возвращаются: они записываются в результаты узлов.
// Возвращается ошибка только если DAG не строится или не удалось
// сохранить итоговое состояние job.
func (r *Runner) Run(ctx context.Context, job *domain.Job) error {
	log := telemetry.WithJobID(r.logger, job.ID.String())

	// Сохранять состояние нужно и после отмены ctx
	saveCtx := context.WithoutCancel(ctx)

	dag, err := engine.BuildDAG(&job.Spec)
	if err != nil {
		job.MarkFailed(err.Error())
		telemetry.JobsTotal.WithLabelValues(string(job.Status)).Inc()
		if saveErr := r.store.Save(saveCtx, job); saveErr != nil {
			log.Warn("failed to save job", "error", saveErr)
		}
		return fmt.Errorf("build dag: %w", err)
	}

	job.MarkRunning(dag.OrderIDs())
	for _, node := range dag.Order {
		job.Result(node.ID).Level = node.Level
	}
	r.save(saveCtx, job, log)

	log.Info("job started",
		"nodes", dag.Size(),
		"depth", dag.Depth(),
		"order", strings.Join(job.Order, ","),
	)

	tctx := engine.NewContext(job.Spec.Inputs)

	for _, node := range dag.Order {
		result := job.Result(node.ID)

		if ctx.Err() != nil {
			result.MarkSkipped(ErrJobCancelled.Error())
			telemetry.NodesTotal.WithLabelValues(string(result.Status)).Inc()
			continue
		}

		if dep := dag.BlockingDependency(node, job.Results); dep != "" {
			reason := fmt.Sprintf("dependency %s %s", dep, strings.ToLower(string(job.Results[dep].Status)))
			result.MarkSkipped(reason)
			tctx.AddNodeResult(node.ID, "", result.Status)
			telemetry.NodesTotal.WithLabelValues(string(result.Status)).Inc()

			log.Info("node skipped", "node_id", node.ID, "reason", reason)
			r.save(saveCtx, job, log)
			continue
		}

		r.runNode(ctx, saveCtx, job, node, tctx, log)
	}

	job.Finalize()
	if ctx.Err() != nil {
		job.Error = ErrJobCancelled.Error()
	}
	telemetry.JobsTotal.WithLabelValues(string(job.Status)).Inc()

	usage := job.Usage()
	log.Info("job finished",
		"status", job.Status,
		"duration", job.Duration(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	if err := r.store.Save(saveCtx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// runNode выполняет один узел и записывает результат в job.
func (r *Runner) runNode(ctx, saveCtx context.Context, job *domain.Job, node *engine.Node, tctx *engine.Context, log *slog.Logger) {
	log = telemetry.WithNodeID(log, node.ID)
	result := job.Result(node.ID)

	result.MarkRunning()
	r.save(saveCtx, job, log)

	started := time.Now()
	resp, err := r.callModel(ctx, node, tctx, result, log)
	telemetry.NodeDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		result.MarkFailed(err.Error())
		tctx.AddNodeResult(node.ID, "", result.Status)
		telemetry.NodesTotal.WithLabelValues(string(result.Status)).Inc()

		log.Warn("node failed", "attempts", result.Attempts, "error", err)
		r.save(saveCtx, job, log)
		return
	}

	result.MarkCompleted(resp.Text, resp.InputTokens, resp.OutputTokens)
	result.Model = resp.Model
	result.StopReason = resp.StopReason
	tctx.AddNodeResult(node.ID, resp.Text, result.Status)

	telemetry.NodesTotal.WithLabelValues(string(result.Status)).Inc()
	telemetry.ObserveTokens(resp.InputTokens, resp.OutputTokens)

	log.Info("node completed",
		"attempts", result.Attempts,
		"duration", result.Duration(),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	r.save(saveCtx, job, log)
}

// callModel собирает запрос к модели и выполняет его с повторами.
func (r *Runner) callModel(ctx context.Context, node *engine.Node, tctx *engine.Context, result *domain.NodeResult, log *slog.Logger) (*llm.Response, error) {
	prompt, err := engine.RenderPrompt(node, tctx)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	system, err := r.systemPrompt(node.Def, tctx)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		Model:       node.Def.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   node.Def.MaxTokens,
		Temperature: node.Def.Temperature,
	}

	maxAttempts := r.retry.attempts()

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		resp, err := r.complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrJobCancelled, err)
		}

		if !retryable(err) {
			return nil, err
		}
		if attempt >= maxAttempts {
			if maxAttempts > 1 {
				return nil, fmt.Errorf("%w: %w", ErrRetryExhausted, err)
			}
			return nil, err
		}

		delay := calculateBackoff(attempt, r.retry)
		log.Debug("retrying node", "attempt", attempt, "delay", delay, "error", err)

		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrJobCancelled, err)
		}
	}
}

// retryable — временная ошибка модели или таймаут узла.
func retryable(err error) bool {
	return llm.IsRetryable(err) || errors.Is(err, ErrNodeTimeout)
}

// complete выполняет один вызов модели с таймаутом узла.
func (r *Runner) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	nodeCtx, cancel := context.WithTimeout(ctx, r.nodeTimeout)
	defer cancel()

	resp, err := r.completer.Complete(nodeCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrNodeTimeout, r.nodeTimeout)
	}
	return resp, err
}

// systemPrompt возвращает системный промпт узла: явный System (шаблон),
// иначе тело skill как есть, иначе пусто.
func (r *Runner) systemPrompt(def *domain.NodeDef, tctx *engine.Context) (string, error) {
	if def.System != "" {
		return engine.Render(def.System, tctx)
	}
	if def.Skill == "" {
		return "", nil
	}

	skill, ok := r.catalog.Get(def.Skill)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSkill, def.Skill)
	}
	return skill.Body, nil
}

// save сохраняет промежуточное состояние job.
// Ошибка не прерывает выполнение: итоговое состояние сохраняется ещё раз.
func (r *Runner) save(ctx context.Context, job *domain.Job, log *slog.Logger) {
	if err := r.store.Save(ctx, job); err != nil {
		log.Warn("failed to save job progress", "error", err)
	}
}
