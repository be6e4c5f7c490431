package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики выполнения jobs.
var (
	// JobsTotal — завершённые jobs по итоговому статусу.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilldag_jobs_total",
		Help: "Finished jobs by final status",
	}, []string{"status"})

	// NodesTotal — узлы по итоговому статусу.
	NodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilldag_nodes_total",
		Help: "Finished DAG nodes by status",
	}, []string{"status"})

	// NodeDuration — время выполнения узла (вызов модели с повторами).
	NodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skilldag_node_duration_seconds",
		Help:    "Duration of a DAG node model call",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	// LLMTokensTotal — токены модели (direction: input/output).
	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilldag_llm_tokens_total",
		Help: "Model tokens consumed by direction",
	}, []string{"direction"})

	// RateLimitedTotal — запросы, отклонённые дневным лимитом.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skilldag_rate_limited_total",
		Help: "Requests rejected by the daily rate limit",
	})

	// HTTPRequestsTotal — HTTP запросы по методу и коду ответа.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skilldag_http_requests_total",
		Help: "HTTP requests handled by skilldag-api",
	}, []string{"method", "status"})
)

// ObserveHTTPRequest учитывает один HTTP запрос.
func ObserveHTTPRequest(method string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveTokens учитывает токены одного вызова модели.
func ObserveTokens(input, output int64) {
	LLMTokensTotal.WithLabelValues("input").Add(float64(input))
	LLMTokensTotal.WithLabelValues("output").Add(float64(output))
}

// PurgedJobsTotal — записи jobs, удалённые janitor после истечения TTL.
var PurgedJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skilldag_jobs_purged_total",
	Help: "Expired job records removed by the janitor",
})
