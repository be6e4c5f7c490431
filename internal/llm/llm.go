package llm

import (
	"context"
	"fmt"
	"time"
)

// Провайдеры модели.
const (
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// DefaultModel — модель по умолчанию.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens — лимит токенов ответа по умолчанию.
const DefaultMaxTokens = 1024

// Request — один вызов модели.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Response — ответ модели.
type Response struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Completer — интерфейс модели.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Config — конфигурация клиента модели.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration
}

// New создаёт Completer по cfg.Provider.
func New(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "", ProviderAnthropic:
		return NewAnthropicCompleter(cfg)
	case ProviderEcho:
		return NewEchoCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// applyDefaults заполняет пустые поля запроса значениями из конфигурации.
func applyDefaults(req Request, cfg Config) Request {
	if req.Model == "" {
		req.Model = cfg.Model
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return req
}
