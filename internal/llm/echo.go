package llm

import (
	"context"
	"strings"
)

// EchoCompleter возвращает промпт без обращения к сети.
// Токены считаются как количество слов.
type EchoCompleter struct {
	cfg Config
}

// NewEchoCompleter создаёт EchoCompleter.
func NewEchoCompleter(cfg Config) *EchoCompleter {
	return &EchoCompleter{cfg: cfg}
}

// Complete реализует Completer.
func (c *EchoCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req = applyDefaults(req, c.cfg)

	return &Response{
		Text:         req.Prompt,
		Model:        req.Model,
		StopReason:   "end_turn",
		InputTokens:  int64(len(strings.Fields(req.System)) + len(strings.Fields(req.Prompt))),
		OutputTokens: int64(len(strings.Fields(req.Prompt))),
	}, nil
}
