package engine

import "errors"

// Ошибки валидации JobSpec.
var (
	// ErrEmptyNodes — DAG не содержит узлов.
	ErrEmptyNodes = errors.New("dag has no nodes")

	// ErrTooManyNodes — узлов больше, чем domain.MaxNodes.
	ErrTooManyNodes = errors.New("dag has too many nodes")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrInvalidNodeID — ID содержит недопустимые символы или слишком длинный.
	ErrInvalidNodeID = errors.New("invalid node ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrEmptyPrompt — у узла нет промпта.
	ErrEmptyPrompt = errors.New("node has empty prompt")

	// ErrMissingDependency — узел зависит от несуществующего узла.
	ErrMissingDependency = errors.New("node depends on unknown node")

	// ErrSelfDependency — узел зависит от самого себя.
	ErrSelfDependency = errors.New("node depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrUnknownSkill — узел ссылается на skill, которого нет в каталоге.
	ErrUnknownSkill = errors.New("unknown skill")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsValidationError проверяет, является ли ошибка ошибкой валидации DAG.
func IsValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrEmptyNodes) ||
		errors.Is(err, ErrTooManyNodes) ||
		errors.Is(err, ErrCyclicDependency)
}
