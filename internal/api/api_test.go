package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/skilldag/internal/domain"
	"github.com/shaiso/skilldag/internal/llm"
	"github.com/shaiso/skilldag/internal/ratelimit"
	"github.com/shaiso/skilldag/internal/skills"
	"github.com/shaiso/skilldag/internal/store"
	"github.com/shaiso/skilldag/internal/telemetry"
	"github.com/shaiso/skilldag/internal/worker"
)

// failingCompleter отвечает эхом, но падает на промптах с префиксом FAIL.
type failingCompleter struct {
	echo *llm.EchoCompleter
}

func (c failingCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if strings.HasPrefix(req.Prompt, "FAIL") {
		return nil, &llm.APIError{StatusCode: http.StatusBadRequest, Message: "model rejected prompt"}
	}
	return c.echo.Complete(ctx, req)
}

// fakePublisher запоминает опубликованные jobs.
type fakePublisher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (p *fakePublisher) PublishJobPending(ctx context.Context, jobID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, jobID)
	return nil
}

type fakeBroker struct{ connected bool }

func (b fakeBroker) IsConnected() bool { return b.connected }

type testEnv struct {
	handler *Handler
	mux     *http.ServeMux
	store   *store.MemoryStore
}

func newTestEnv(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()

	logger := telemetry.Discard()
	st := store.NewMemoryStore()

	runner := worker.NewRunner(worker.RunnerConfig{
		Store:     st,
		Completer: failingCompleter{echo: llm.NewEchoCompleter(llm.Config{Model: "echo"})},
		Catalog:   skills.NewCatalog(skills.Skill{Name: "reviewer", Description: "Reviews text", Body: "You review text."}),
		Logger:    logger,
	})

	cfg := Config{
		Store:   st,
		Runner:  runner,
		Limiter: ratelimit.NewMemoryLimiter(100),
		Catalog: skills.NewCatalog(
			skills.Skill{Name: "reviewer", Description: "Reviews text", Body: "You review text."},
			skills.Skill{Name: "summarizer", Body: "You summarize."},
		),
		CORSOrigins: []string{"*"},
		Logger:      logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h := NewHandler(cfg)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &testEnv{handler: h, mux: mux, store: st}
}

func (e *testEnv) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) JobResponse {
	t.Helper()
	var resp struct {
		Data JobResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v\nbody: %s", err, rec.Body.String())
	}
	return resp.Error
}

func nodeByID(t *testing.T, job JobResponse, id string) NodeResponse {
	t.Helper()
	for _, n := range job.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %q not found in response", id)
	return NodeResponse{}
}

func nodesJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"id":"n%d","prompt":"p%d"}`, i, i)
	}
	return `{"nodes":[` + strings.Join(parts, ",") + `]}`
}

func TestCreateJob_BadRequest(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		body    string
		wantMsg string
	}{
		{"invalid json", "/api/v1/jobs", `{"nodes":[`, "invalid JSON"},
		{"empty body", "/api/v1/jobs", ``, "empty"},
		{"unknown field", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x"}],"extra":1}`, "unknown field"},
		{"trailing data", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x"}]} {}`, "unexpected data"},
		{"missing nodes", "/api/v1/jobs", `{}`, "nodes is required"},
		{"empty nodes", "/api/v1/jobs", `{"nodes":[]}`, "at least 1"},
		{"too many nodes", "/api/v1/jobs", nodesJSON(9), "at most 8"},
		{"missing prompt", "/api/v1/jobs", `{"nodes":[{"id":"a"}]}`, "nodes[0].prompt is required"},
		{"temperature out of range", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x","temperature":1.5}]}`, "temperature"},
		{"invalid node id", "/api/v1/jobs", `{"nodes":[{"id":"a b","prompt":"x"}]}`, "node ID must match"},
		{"duplicate id", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x"},{"id":"a","prompt":"y"}]}`, "duplicate"},
		{"unknown dependency", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x","depends_on":["zzz"]}]}`, "unknown node"},
		{"self dependency", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x","depends_on":["a"]}]}`, "itself"},
		{
			"cycle", "/api/v1/jobs",
			`{"nodes":[{"id":"a","prompt":"x","depends_on":["b"]},{"id":"b","prompt":"y","depends_on":["a"]}]}`,
			"cyclic",
		},
		{"unknown skill", "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"x","skill":"nope"}]}`, "unknown skill"},
		{"invalid async", "/api/v1/jobs?async=maybe", `{"nodes":[{"id":"a","prompt":"x"}]}`, "async"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(http.MethodPost, tt.target, tt.body, nil)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
			}
			detail := decodeError(t, rec)
			if detail.Code != ErrCodeBadRequest {
				t.Errorf("code = %s, want %s", detail.Code, ErrCodeBadRequest)
			}
			if !strings.Contains(detail.Message, tt.wantMsg) {
				t.Errorf("message = %q, want to contain %q", detail.Message, tt.wantMsg)
			}
		})
	}
}

func TestCreateJob_BadRequestDoesNotConsumeQuota(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Limiter = ratelimit.NewMemoryLimiter(1)
	})

	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodPost, "/api/v1/jobs", `{"nodes":[]}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	}

	rec := env.do(http.MethodPost, "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"hello"}]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateJob_PayloadTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)

	big := `{"nodes":[{"id":"a","prompt":"` + strings.Repeat("x", int(maxBodyBytes)) + `"}]}`
	rec := env.do(http.MethodPost, "/api/v1/jobs", big, nil)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != ErrCodePayloadTooLarge {
		t.Errorf("code = %s, want %s", got, ErrCodePayloadTooLarge)
	}
}

func TestCreateJob_Sync(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{
		"inputs": {"topic": "graphs"},
		"nodes": [
			{"id": "summary", "label": "Summary", "prompt": "Write about {{ .Inputs.topic }}", "depends_on": ["outline"]},
			{"id": "outline", "prompt": "Outline {{ .Inputs.topic }}", "skill": "reviewer"}
		]
	}`
	rec := env.do(http.MethodPost, "/api/v1/jobs", body, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	job := decodeJob(t, rec)
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", job.Status)
	}

	// Порядок выполнения, а не порядок запроса
	if len(job.Nodes) != 2 || job.Nodes[0].ID != "outline" || job.Nodes[1].ID != "summary" {
		t.Fatalf("nodes order = %+v, want outline, summary", job.Nodes)
	}

	outline := nodeByID(t, job, "outline")
	if outline.Output != "Outline graphs" {
		t.Errorf("outline output = %q", outline.Output)
	}
	if outline.Level != 0 {
		t.Errorf("outline level = %d, want 0", outline.Level)
	}

	summary := nodeByID(t, job, "summary")
	if summary.Level != 1 {
		t.Errorf("summary level = %d, want 1", summary.Level)
	}
	if !strings.HasPrefix(summary.Output, "Write about graphs") {
		t.Errorf("summary output = %q, want rendered prompt first", summary.Output)
	}
	if !strings.Contains(summary.Output, "### outline\nOutline graphs") {
		t.Errorf("summary output = %q, want upstream output", summary.Output)
	}
	if summary.Label != "Summary" {
		t.Errorf("summary label = %q", summary.Label)
	}

	if job.Usage.InputTokens == 0 || job.Usage.OutputTokens == 0 {
		t.Errorf("usage = %+v, want non-zero", job.Usage)
	}
	if job.Counts["completed"] != 2 {
		t.Errorf("counts = %v, want 2 completed", job.Counts)
	}

	if got := rec.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want 100", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "99" {
		t.Errorf("X-RateLimit-Remaining = %q, want 99", got)
	}

	// Job доступен через GET
	stored, err := env.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.Status != domain.JobStatusCompleted {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestCreateJob_FailureSkipsDependents(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"nodes": [
		{"id": "a", "prompt": "FAIL here"},
		{"id": "b", "prompt": "uses a", "depends_on": ["a"]},
		{"id": "c", "prompt": "uses b", "depends_on": ["b"]},
		{"id": "d", "prompt": "independent"}
	]}`
	rec := env.do(http.MethodPost, "/api/v1/jobs", body, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	job := decodeJob(t, rec)
	if job.Status != domain.JobStatusPartial {
		t.Errorf("status = %s, want PARTIAL", job.Status)
	}

	tests := []struct {
		id        string
		status    domain.NodeStatus
		errSubstr string
	}{
		{"a", domain.NodeStatusFailed, "model rejected prompt"},
		{"b", domain.NodeStatusSkipped, "dependency a failed"},
		{"c", domain.NodeStatusSkipped, "dependency b skipped"},
		{"d", domain.NodeStatusCompleted, ""},
	}
	for _, tt := range tests {
		n := nodeByID(t, job, tt.id)
		if n.Status != tt.status {
			t.Errorf("node %s status = %s, want %s", tt.id, n.Status, tt.status)
		}
		if tt.errSubstr != "" && !strings.Contains(n.Error, tt.errSubstr) {
			t.Errorf("node %s error = %q, want to contain %q", tt.id, n.Error, tt.errSubstr)
		}
	}
}

func TestCreateJob_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Limiter = ratelimit.NewMemoryLimiter(1)
	})
	body := `{"nodes":[{"id":"a","prompt":"hello"}]}`
	headers := map[string]string{"CF-Connecting-IP": "203.0.113.7"}

	if rec := env.do(http.MethodPost, "/api/v1/jobs", body, headers); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec := env.do(http.MethodPost, "/api/v1/jobs", body, headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != ErrCodeRateLimited {
		t.Errorf("code = %s, want %s", got, ErrCodeRateLimited)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}

	// Другой клиент не затронут
	other := map[string]string{"CF-Connecting-IP": "203.0.113.8"}
	if rec := env.do(http.MethodPost, "/api/v1/jobs", body, other); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

// errLimiter всегда возвращает ошибку.
type errLimiter struct{}

func (errLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestCreateJob_LimiterError(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Limiter = errLimiter{}
	})

	rec := env.do(http.MethodPost, "/api/v1/jobs", `{"nodes":[{"id":"a","prompt":"hello"}]}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != ErrCodeInternalError {
		t.Errorf("code = %s, want %s", got, ErrCodeInternalError)
	}
}

func TestCreateJob_AsyncWithoutBroker(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/v1/jobs?async=true", `{"nodes":[{"id":"a","prompt":"hello"}]}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", rec.Code, rec.Body.String())
	}

	job := decodeJob(t, rec)
	if job.Status != domain.JobStatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.handler.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	rec = env.do(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	got := decodeJob(t, rec)
	if got.Status != domain.JobStatusCompleted {
		t.Errorf("status after run = %s, want COMPLETED", got.Status)
	}
	if out := nodeByID(t, got, "a").Output; out != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
}

func TestCreateJob_AsyncPublishes(t *testing.T) {
	pub := &fakePublisher{}
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Publisher = pub
	})

	rec := env.do(http.MethodPost, "/api/v1/jobs?async=1", `{"nodes":[{"id":"a","prompt":"hello"}]}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	job := decodeJob(t, rec)

	if len(pub.ids) != 1 || pub.ids[0] != job.ID {
		t.Fatalf("published = %v, want [%s]", pub.ids, job.ID)
	}

	// Выполнение — забота worker: job остаётся PENDING
	stored, err := env.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.Status != domain.JobStatusPending {
		t.Errorf("stored status = %s, want PENDING", stored.Status)
	}
}

func TestCreateJob_AsyncPublishFailureRunsInProcess(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Publisher = pub
	})

	rec := env.do(http.MethodPost, "/api/v1/jobs?async=true", `{"nodes":[{"id":"a","prompt":"hello"}]}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	job := decodeJob(t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.handler.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	stored, err := env.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.Status != domain.JobStatusCompleted {
		t.Errorf("stored status = %s, want COMPLETED", stored.Status)
	}
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("invalid id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/jobs/not-a-uuid", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if got := decodeError(t, rec).Code; got != ErrCodeNotFound {
			t.Errorf("code = %s, want %s", got, ErrCodeNotFound)
		}
	})

	t.Run("found", func(t *testing.T) {
		job := domain.NewJob(domain.JobSpec{Nodes: []domain.NodeDef{{ID: "a", Prompt: "x"}}}, time.Hour)
		if err := env.store.Save(context.Background(), job); err != nil {
			t.Fatalf("Save: %v", err)
		}

		rec := env.do(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		got := decodeJob(t, rec)
		if got.ID != job.ID || got.Status != domain.JobStatusPending {
			t.Errorf("got %s/%s, want %s/PENDING", got.ID, got.Status, job.ID)
		}
	})
}

func TestListSkills(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/skills", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data  []SkillResponse `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("skills = %+v, want 2", resp)
	}
	if resp.Data[0].Name != "reviewer" || resp.Data[1].Name != "summarizer" {
		t.Errorf("skills order = %+v", resp.Data)
	}
	if resp.Data[0].Description != "Reviews text" {
		t.Errorf("description = %q", resp.Data[0].Description)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		broker     BrokerStatus
		wantBroker string
	}{
		{"no broker", nil, ""},
		{"connected", fakeBroker{connected: true}, "connected"},
		{"disconnected", fakeBroker{connected: false}, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(cfg *Config) {
				cfg.Broker = tt.broker
			})

			rec := env.do(http.MethodGet, "/healthz", "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != "ok" {
				t.Errorf("status = %q, want ok", resp.Status)
			}
			if resp.Uptime == "" {
				t.Error("uptime is empty")
			}
			if resp.Broker != tt.wantBroker {
				t.Errorf("broker = %q, want %q", resp.Broker, tt.wantBroker)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(http.MethodOptions, "/api/v1/jobs", "", map[string]string{
			"Origin":                        "https://app.example.com",
			"Access-Control-Request-Method": "POST",
		})

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
			t.Errorf("Allow-Methods = %q", got)
		}
	})

	t.Run("preflight on unknown path", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(http.MethodOptions, "/anything", "", nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})

	t.Run("allowed origin list", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *Config) {
			cfg.CORSOrigins = []string{"https://app.example.com"}
		})

		rec := env.do(http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://app.example.com"})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Allow-Origin = %q", got)
		}

		rec = env.do(http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://evil.example.com"})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(telemetry.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"cloudflare header wins", map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Forwarded-For": "10.0.0.1"}, "127.0.0.1:1234", "198.51.100.1"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1, 10.0.0.2"}, "127.0.0.1:1234", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"remote addr ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "192.0.2.11", "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTooManyRequests_RetryAfterRoundsUp(t *testing.T) {
	rec := httptest.NewRecorder()
	TooManyRequests(rec, 1500*time.Millisecond)

	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}

func TestCreateJobRequest_ToSpec(t *testing.T) {
	temp := 0.2
	req := CreateJobRequest{
		Inputs: map[string]any{"k": "v"},
		Nodes: []NodeRequest{{
			ID: "a", Label: "A", Prompt: "p", Skill: "reviewer", Model: "m",
			MaxTokens: 10, Temperature: &temp, DependsOn: []string{"b"}, NoUpstreamContext: true,
		}},
	}

	spec := req.ToSpec()
	if len(spec.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(spec.Nodes))
	}
	n := spec.Nodes[0]
	if n.ID != "a" || n.Label != "A" || n.Skill != "reviewer" || n.MaxTokens != 10 ||
		*n.Temperature != 0.2 || n.DependsOn[0] != "b" || !n.NoUpstreamContext {
		t.Errorf("node = %+v", n)
	}
	if spec.Inputs["k"] != "v" {
		t.Errorf("inputs = %v", spec.Inputs)
	}

	// Пустой запрос в JSON даёт nil Nodes
	var empty CreateJobRequest
	if err := json.NewDecoder(bytes.NewBufferString(`{}`)).Decode(&empty); err != nil {
		t.Fatal(err)
	}
	if err := empty.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing nodes")
	}
}
