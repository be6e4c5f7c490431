package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(),
		CORS(h.corsOrigins),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))

	// Skills
	mux.Handle("GET /api/v1/skills", chain(http.HandlerFunc(h.ListSkills)))

	// Health и metrics
	mux.Handle("GET /healthz", chain(http.HandlerFunc(h.Health)))
	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS preflight отвечает middleware, до обработчика запрос не доходит
	mux.Handle("OPTIONS /", chain(http.HandlerFunc(MethodNotAllowedHandler)))
}
