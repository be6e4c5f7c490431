package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ PARTIAL
//	                  ↘ FAILED
type JobStatus string

const (
	// JobStatusPending — job создан, но ещё не начал выполняться (async режим).
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — job в процессе выполнения.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusCompleted — все узлы успешно выполнены.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusPartial — часть узлов выполнена, часть упала или пропущена.
	JobStatusPartial JobStatus = "PARTIAL"

	// JobStatusFailed — ни один узел не выполнен, либо job упал целиком.
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (job завершён).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

// NodeStatus — статус выполнения узла DAG.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	        ↘ SKIPPED (зависимость упала или была пропущена)
type NodeStatus string

const (
	// NodeStatusPending — узел ожидает своей очереди.
	NodeStatusPending NodeStatus = "PENDING"

	// NodeStatusRunning — идёт вызов модели.
	NodeStatusRunning NodeStatus = "RUNNING"

	// NodeStatusCompleted — модель вернула ответ.
	NodeStatusCompleted NodeStatus = "COMPLETED"

	// NodeStatusFailed — вызов модели завершился ошибкой.
	NodeStatusFailed NodeStatus = "FAILED"

	// NodeStatusSkipped — узел не выполнялся, потому что упала зависимость.
	NodeStatusSkipped NodeStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusFailed, NodeStatusSkipped:
		return true
	default:
		return false
	}
}

// BlocksDependents возвращает true, если зависимые узлы должны быть пропущены.
func (s NodeStatus) BlocksDependents() bool {
	return s == NodeStatusFailed || s == NodeStatusSkipped
}
