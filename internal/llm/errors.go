package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnknownProvider — неизвестное значение LLM_PROVIDER.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrMissingAPIKey — не задан ключ API.
	ErrMissingAPIKey = errors.New("anthropic API key is required")

	// ErrEmptyResponse — модель не вернула текст.
	ErrEmptyResponse = errors.New("model returned no text")
)

// APIError — ошибка, которую вернул API модели.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap возвращает исходную ошибку SDK.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable возвращает true для временных ошибок.
// 529 — перегрузка Anthropic API.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests, 529:
		return true
	}
	return e.StatusCode >= 500
}

// IsRetryable проверяет, стоит ли повторять вызов после ошибки.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
