package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/skills"
)

// validate — общий валидатор DTO. Кэширует разбор структур, безопасен для горутин.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В сообщениях об ошибках — имена полей из JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Job DTOs

// CreateJobRequest — запрос на запуск DAG.
type CreateJobRequest struct {
	Nodes  []NodeRequest  `json:"nodes" validate:"required,min=1,max=8,dive"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// NodeRequest — узел DAG в запросе.
type NodeRequest struct {
	ID                string   `json:"id" validate:"required,max=64"`
	Label             string   `json:"label,omitempty" validate:"max=200"`
	Prompt            string   `json:"prompt" validate:"required,max=32768"`
	System            string   `json:"system,omitempty" validate:"max=32768"`
	Skill             string   `json:"skill,omitempty" validate:"max=128"`
	Model             string   `json:"model,omitempty" validate:"max=128"`
	MaxTokens         int      `json:"max_tokens,omitempty" validate:"gte=0,lte=8192"`
	Temperature       *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	DependsOn         []string `json:"depends_on,omitempty" validate:"max=8,dive,required"`
	NoUpstreamContext bool     `json:"no_upstream_context,omitempty"`
}

// Validate проверяет форму запроса. Граф (циклы, ссылки) проверяет engine.
func (r *CreateJobRequest) Validate() error {
	return validationMessage(validate.Struct(r))
}

// ToSpec конвертирует запрос в domain.JobSpec.
func (r *CreateJobRequest) ToSpec() domain.JobSpec {
	nodes := make([]domain.NodeDef, len(r.Nodes))
	for i, n := range r.Nodes {
		nodes[i] = domain.NodeDef{
			ID:                n.ID,
			Label:             n.Label,
			Prompt:            n.Prompt,
			System:            n.System,
			Skill:             n.Skill,
			Model:             n.Model,
			MaxTokens:         n.MaxTokens,
			Temperature:       n.Temperature,
			DependsOn:         n.DependsOn,
			NoUpstreamContext: n.NoUpstreamContext,
		}
	}
	return domain.JobSpec{Nodes: nodes, Inputs: r.Inputs}
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID         uuid.UUID        `json:"id"`
	Status     domain.JobStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	Nodes      []NodeResponse   `json:"nodes"`
	Usage      domain.Usage     `json:"usage"`
	Counts     map[string]int   `json:"counts"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	ExpiresAt  time.Time        `json:"expires_at"`
	DurationMs int64            `json:"duration_ms"`
}

// NodeResponse — результат узла в ответе.
type NodeResponse struct {
	ID           string            `json:"id"`
	Label        string            `json:"label,omitempty"`
	Status       domain.NodeStatus `json:"status"`
	Level        int               `json:"level"`
	DependsOn    []string          `json:"depends_on,omitempty"`
	Output       string            `json:"output,omitempty"`
	Error        string            `json:"error,omitempty"`
	Model        string            `json:"model,omitempty"`
	StopReason   string            `json:"stop_reason,omitempty"`
	InputTokens  int64             `json:"input_tokens"`
	OutputTokens int64             `json:"output_tokens"`
	Attempts     int               `json:"attempts,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
//
// Узлы идут в порядке выполнения, если он известен, иначе в порядке запроса.
func JobFromDomain(j *domain.Job) JobResponse {
	defs := make(map[string]*domain.NodeDef, len(j.Spec.Nodes))
	ids := make([]string, 0, len(j.Spec.Nodes))
	for i := range j.Spec.Nodes {
		def := &j.Spec.Nodes[i]
		defs[def.ID] = def
		ids = append(ids, def.ID)
	}
	if len(j.Order) == len(ids) {
		ids = j.Order
	}

	nodes := make([]NodeResponse, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, nodeFromDomain(defs[id], j.Result(id)))
	}

	counts := make(map[string]int)
	for status, n := range j.CountByStatus() {
		counts[strings.ToLower(string(status))] = n
	}

	return JobResponse{
		ID:         j.ID,
		Status:     j.Status,
		Error:      j.Error,
		Nodes:      nodes,
		Usage:      j.Usage(),
		Counts:     counts,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		ExpiresAt:  j.ExpiresAt,
		DurationMs: j.Duration().Milliseconds(),
	}
}

func nodeFromDomain(def *domain.NodeDef, r *domain.NodeResult) NodeResponse {
	resp := NodeResponse{
		ID:           r.NodeID,
		Status:       r.Status,
		Level:        r.Level,
		Output:       r.Output,
		Error:        r.Error,
		Model:        r.Model,
		StopReason:   r.StopReason,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Attempts:     r.Attempts,
		DurationMs:   r.Duration().Milliseconds(),
	}
	if def != nil {
		resp.Label = def.Label
		resp.DependsOn = def.DependsOn
	}
	return resp
}

// Skill DTOs

// SkillResponse — skill каталога.
type SkillResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SkillFromDomain конвертирует skills.Skill в SkillResponse.
func SkillFromDomain(s skills.Skill) SkillResponse {
	return SkillResponse{
		Name:        s.Name,
		Description: s.Description,
	}
}

// validationMessage превращает ошибки validator в одну читаемую ошибку.
func validationMessage(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	// Namespace: "CreateJobRequest.nodes[0].prompt" → "nodes[0].prompt"
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if isList {
			return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
