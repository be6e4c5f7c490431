package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxNodes — максимальное количество узлов в одном DAG.
const MaxNodes = 8

// DefaultJobTTL — время жизни записи job в хранилище.
const DefaultJobTTL = time.Hour

// JobSpec — то, что присылает клиент: список узлов и входные параметры.
type JobSpec struct {
	// Nodes — узлы DAG в порядке, заданном клиентом.
	// Порядок используется как tie-break внутри одного уровня.
	Nodes []NodeDef `json:"nodes" yaml:"nodes"`

	// Inputs — значения для {{ .Inputs.x }} в шаблонах.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Job — одно выполнение DAG.
//
// Job хранится в key-value хранилище с ограниченным TTL.
// Каждое изменение статуса узла перезаписывает запись целиком (last write wins).
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус выполнения.
	Status JobStatus `json:"status"`

	// Spec — исходный DAG.
	Spec JobSpec `json:"spec"`

	// Order — порядок выполнения узлов (заполняется при старте).
	Order []string `json:"order,omitempty"`

	// Results — результаты по узлам (nodeID → result).
	Results map[string]*NodeResult `json:"results"`

	// Error — ошибка уровня job (невалидный DAG, отмена и т.д.).
	Error string `json:"error,omitempty"`

	// ClientIP — адрес клиента, создавшего job.
	ClientIP string `json:"client_ip,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// ExpiresAt — после этого момента job недоступен.
	ExpiresAt time.Time `json:"expires_at"`
}

// Usage — суммарное потребление токенов job.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// NewJob создаёт job в статусе PENDING с результатами PENDING для каждого узла.
func NewJob(spec JobSpec, ttl time.Duration) *Job {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Status:    JobStatusPending,
		Spec:      spec,
		Results:   make(map[string]*NodeResult, len(spec.Nodes)),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	for _, node := range spec.Nodes {
		job.Results[node.ID] = &NodeResult{
			NodeID: node.ID,
			Status: NodeStatusPending,
		}
	}

	return job
}

// Result возвращает результат узла, создавая его при необходимости.
func (j *Job) Result(nodeID string) *NodeResult {
	if j.Results == nil {
		j.Results = make(map[string]*NodeResult)
	}
	r, ok := j.Results[nodeID]
	if !ok {
		r = &NodeResult{NodeID: nodeID, Status: NodeStatusPending}
		j.Results[nodeID] = r
	}
	return r
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// IsExpired проверяет, истёк ли срок хранения.
func (j *Job) IsExpired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && !now.Before(j.ExpiresAt)
}

// TTL возвращает оставшееся время жизни записи.
func (j *Job) TTL(now time.Time) time.Duration {
	if j.ExpiresAt.IsZero() {
		return DefaultJobTTL
	}
	return j.ExpiresAt.Sub(now)
}

// Duration возвращает продолжительность выполнения.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning(order []string) {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Order = order
}

// MarkFailed завершает job с ошибкой уровня job.
func (j *Job) MarkFailed(err string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.FinishedAt = &now
	j.Error = err
}

// Finalize вычисляет итоговый статус по результатам узлов.
//
// COMPLETED — все узлы выполнены; FAILED — ни одного;
// PARTIAL — всё остальное.
func (j *Job) Finalize() {
	now := time.Now().UTC()
	j.FinishedAt = &now

	completed := 0
	for _, r := range j.Results {
		if r.Status == NodeStatusCompleted {
			completed++
		}
	}

	switch {
	case len(j.Results) > 0 && completed == len(j.Results):
		j.Status = JobStatusCompleted
	case completed == 0:
		j.Status = JobStatusFailed
	default:
		j.Status = JobStatusPartial
	}
}

// Usage суммирует токены по всем узлам.
func (j *Job) Usage() Usage {
	var u Usage
	for _, r := range j.Results {
		u.InputTokens += r.InputTokens
		u.OutputTokens += r.OutputTokens
	}
	return u
}

// CountByStatus возвращает количество узлов в каждом статусе.
func (j *Job) CountByStatus() map[NodeStatus]int {
	counts := make(map[NodeStatus]int)
	for _, r := range j.Results {
		counts[r.Status]++
	}
	return counts
}
