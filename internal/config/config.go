// Package config собирает настройки сервисов из переменных окружения.
//
// Перед чтением окружения подхватывается файл .env (если он есть);
// уже заданные переменные окружения имеют приоритет над .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config — настройки всех сервисов skilldag.
type Config struct {
	APIPort    string
	WorkerPort string

	StoreBackend string
	DBURL        string
	RedisURL     string
	RabbitMQURL  string

	LLMProvider     string
	AnthropicAPIKey string
	AnthropicURL    string
	LLMModel        string
	LLMMaxTokens    int
	LLMMaxRetries   int

	NodeTimeout time.Duration
	SyncTimeout time.Duration
	JobTTL      time.Duration
	DailyLimit  int
	CORSOrigins []string
	SkillsDir   string

	RetryMaxAttempts  int
	RetryBackoff      string
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	JanitorSchedule string
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv читает настройки только из окружения.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		APIPort:    getEnv("API_PORT", "8080"),
		WorkerPort: getEnv("WORKER_PORT", "8082"),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		DBURL:        os.Getenv("DB_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),

		LLMProvider:     getEnv("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicURL:    os.Getenv("ANTHROPIC_BASE_URL"),
		LLMModel:        getEnv("LLM_MODEL", "claude-sonnet-4-5"),
		LLMMaxTokens:    p.int("LLM_MAX_TOKENS", 1024),
		LLMMaxRetries:   p.int("LLM_MAX_RETRIES", 0),

		NodeTimeout: p.seconds("NODE_TIMEOUT_SEC", 60),
		SyncTimeout: p.seconds("SYNC_TIMEOUT_SEC", 300),
		JobTTL:      p.seconds("JOB_TTL_SEC", 3600),
		DailyLimit:  p.int("DAILY_LIMIT", 50),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		SkillsDir:   os.Getenv("SKILLS_DIR"),

		RetryMaxAttempts:  p.int("RETRY_MAX_ATTEMPTS", 1),
		RetryBackoff:      getEnv("RETRY_BACKOFF", "exponential"),
		RetryInitialDelay: p.millis("RETRY_INITIAL_DELAY_MS", 1000),
		RetryMaxDelay:     p.millis("RETRY_MAX_DELAY_MS", 10000),

		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 10m"),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	if c.StoreBackend == "redis" && c.RedisURL == "" {
		return errors.New("REDIS_URL is required for STORE_BACKEND=redis")
	}
	switch c.RetryBackoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("RETRY_BACKOFF: unknown backoff %q", c.RetryBackoff)
	}
	if c.JobTTL <= 0 {
		return errors.New("JOB_TTL_SEC must be positive")
	}
	return nil
}

// PublishesJobs сообщает, отдаёт ли API async jobs в RabbitMQ.
// Хранилище в памяти worker не видит: с ним async jobs выполняются
// в процессе API, даже если RABBITMQ_URL задан.
func (c *Config) PublishesJobs() bool {
	return c.RabbitMQURL != "" && c.StoreBackend != "memory"
}

// parser накапливает первую ошибку разбора числовых переменных.
type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s: invalid integer %q", key, v)
		}
		return def
	}
	return n
}

func (p *parser) seconds(key string, def int) time.Duration {
	return time.Duration(p.int(key, def)) * time.Second
}

func (p *parser) millis(key string, def int) time.Duration {
	return time.Duration(p.int(key, def)) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
