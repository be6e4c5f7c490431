package domain

import "time"

// NodeDef — определение узла DAG.
//
// Каждый узел — это один вызов модели. Prompt — Go template,
// в котором доступны {{ .Inputs.x }} и {{ .Nodes.<id>.Output }}.
type NodeDef struct {
	// ID — уникальный идентификатор узла в рамках job.
	// Используется в depends_on и в шаблонах.
	ID string `json:"id" yaml:"id"`

	// Label — человекочитаемое имя узла (заголовок в контексте для следующих узлов).
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Prompt — шаблон пользовательского сообщения.
	Prompt string `json:"prompt" yaml:"prompt"`

	// System — системный промпт. Переопределяет Skill.
	System string `json:"system,omitempty" yaml:"system,omitempty"`

	// Skill — имя skill из каталога; его тело используется как системный промпт.
	Skill string `json:"skill,omitempty" yaml:"skill,omitempty"`

	// Model — модель для этого узла. Пусто — модель по умолчанию.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// MaxTokens — лимит токенов ответа. 0 — значение по умолчанию.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Temperature — температура сэмплирования. nil — значение модели.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// DependsOn — ID узлов, результаты которых нужны этому узлу.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// NoUpstreamContext — не добавлять выводы зависимостей в конец промпта.
	// Полезно, когда шаблон сам ссылается на {{ .Nodes.x.Output }}.
	NoUpstreamContext bool `json:"no_upstream_context,omitempty" yaml:"no_upstream_context,omitempty"`
}

// DisplayName возвращает Label, а если он пуст — ID.
func (n *NodeDef) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// NodeResult — результат выполнения узла.
type NodeResult struct {
	NodeID       string     `json:"node_id"`
	Status       NodeStatus `json:"status"`
	Level        int        `json:"level"`
	Output       string     `json:"output,omitempty"`
	Error        string     `json:"error,omitempty"`
	Model        string     `json:"model,omitempty"`
	StopReason   string     `json:"stop_reason,omitempty"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	Attempts     int        `json:"attempts,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения узла.
func (r *NodeResult) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MarkRunning переводит узел в статус RUNNING.
func (r *NodeResult) MarkRunning() {
	now := time.Now()
	r.Status = NodeStatusRunning
	r.StartedAt = &now
	r.Attempts++
}

// MarkCompleted сохраняет ответ модели.
func (r *NodeResult) MarkCompleted(output string, inputTokens, outputTokens int64) {
	now := time.Now()
	r.Status = NodeStatusCompleted
	r.FinishedAt = &now
	r.Output = output
	r.InputTokens = inputTokens
	r.OutputTokens = outputTokens
	r.Error = ""
}

// MarkFailed переводит узел в статус FAILED с ошибкой.
func (r *NodeResult) MarkFailed(err string) {
	now := time.Now()
	r.Status = NodeStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkSkipped переводит узел в статус SKIPPED.
func (r *NodeResult) MarkSkipped(reason string) {
	now := time.Now()
	r.Status = NodeStatusSkipped
	r.FinishedAt = &now
	r.Error = reason
}
