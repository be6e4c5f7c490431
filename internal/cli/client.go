package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Nodes      []NodeResponse `json:"nodes"`
	Usage      Usage          `json:"usage"`
	Counts     map[string]int `json:"counts,omitempty"`
	CreatedAt  string         `json:"created_at"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
	ExpiresAt  string         `json:"expires_at"`
	DurationMs int64          `json:"duration_ms"`
}

// NodeResponse — результат узла из API.
type NodeResponse struct {
	ID           string   `json:"id"`
	Label        string   `json:"label,omitempty"`
	Status       string   `json:"status"`
	Level        int      `json:"level"`
	DependsOn    []string `json:"depends_on,omitempty"`
	Output       string   `json:"output,omitempty"`
	Error        string   `json:"error,omitempty"`
	Model        string   `json:"model,omitempty"`
	InputTokens  int64    `json:"input_tokens"`
	OutputTokens int64    `json:"output_tokens"`
	Attempts     int      `json:"attempts,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
}

// Usage — суммарные токены job.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// SkillResponse — skill из API.
type SkillResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Broker string `json:"broker,omitempty"`
}

// --- Request types ---

// CreateJobRequest — запуск DAG.
type CreateJobRequest struct {
	Nodes  []NodeRequest  `json:"nodes" yaml:"nodes"`
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// NodeRequest — узел DAG.
type NodeRequest struct {
	ID                string   `json:"id" yaml:"id"`
	Label             string   `json:"label,omitempty" yaml:"label,omitempty"`
	Prompt            string   `json:"prompt" yaml:"prompt"`
	System            string   `json:"system,omitempty" yaml:"system,omitempty"`
	Skill             string   `json:"skill,omitempty" yaml:"skill,omitempty"`
	Model             string   `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	DependsOn         []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	NoUpstreamContext bool     `json:"no_upstream_context,omitempty" yaml:"no_upstream_context,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ответ API с ошибкой.
type APIError struct {
	StatusCode int
	Code       string
	Message    string

	// RetryAfter — из заголовка Retry-After (для 429).
	RetryAfter time.Duration
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// IsRateLimited проверяет, что API отклонил запрос дневным лимитом.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// --- Client ---

// Client — HTTP-клиент для skilldag API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
//
// Таймаут большой: синхронный запуск держит соединение, пока идёт DAG.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// --- Jobs ---

// RunJob запускает DAG. async=true — вернуть job сразу в статусе PENDING.
func (c *Client) RunJob(ctx context.Context, req CreateJobRequest, async bool) (*JobResponse, error) {
	path := "/api/v1/jobs"
	if async {
		path += "?" + url.Values{"async": {"true"}}.Encode()
	}

	var job JobResponse
	err := c.doData(ctx, http.MethodPost, path, req, &job)
	return &job, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(ctx context.Context, id string) (*JobResponse, error) {
	var job JobResponse
	err := c.doData(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &job)
	return &job, err
}

// WaitJob опрашивает job, пока он не завершится или не истечёт ctx.
func (c *Client) WaitJob(ctx context.Context, id string, interval time.Duration) (*JobResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if IsFinished(job.Status) {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsFinished возвращает true для финальных статусов job.
func IsFinished(status string) bool {
	switch status {
	case "COMPLETED", "PARTIAL", "FAILED":
		return true
	}
	return false
}

// --- Skills ---

// ListSkills возвращает каталог skills.
func (c *Client) ListSkills(ctx context.Context) ([]SkillResponse, error) {
	var skills []SkillResponse
	err := c.doData(ctx, http.MethodGet, "/api/v1/skills", nil, &skills)
	return skills, err
}

// --- Health ---

// Health проверяет /healthz. Ответ без конверта data.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}

// --- HTTP helpers ---

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if secs, err := time.ParseDuration(resp.Header.Get("Retry-After") + "s"); err == nil {
		apiErr.RetryAfter = secs
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}

	return apiErr
}
