package api

import (
	"net/http"
	"time"
)

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Broker string `json:"broker,omitempty"`
}

// Health отвечает на проверку живости.
// GET /healthz
//
// Отвалившийся брокер не делает сервис неживым: sync запросы работают,
// а async выполняются в процессе API.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	}

	if h.broker != nil {
		resp.Broker = "connected"
		if !h.broker.IsConnected() {
			resp.Broker = "disconnected"
		}
	}

	JSON(w, http.StatusOK, resp)
}
