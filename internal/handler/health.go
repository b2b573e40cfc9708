package handler

import (
	"net/http"
	"time"

	"github.com/t77yq/alert-ledger/internal/model"
)

// InfoResponse describes the service
type InfoResponse struct {
	Name       string               `json:"name"`
	Version    string               `json:"version"`
	AlertStats model.AggregateStats `json:"alertStats"`
	Endpoints  []string             `json:"endpoints"`
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

var endpoints = []string{
	"GET / - service info",
	"GET /health - health check",
	"GET /metrics - Prometheus metrics",
	"POST /api/webhook/alerts - Alertmanager webhook",
	"GET /api/alerts?limit=N - received alerts and stats",
	"GET /api/alerts/stats - alert stats",
	"DELETE /api/alerts - clear received alerts",
	"GET /api/alerts/history - archived alerts",
	"GET /api/simulate/load - simulate load",
	"GET /api/simulate/error - simulate an error",
	"GET /api/simulate/cpu/{seconds} - simulate CPU load",
	"GET /api/simulate/memory - simulate memory usage",
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, InfoResponse{
		Name:       h.name,
		Version:    h.version,
		AlertStats: h.alerts.Stats(),
		Endpoints:  endpoints,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Seconds(),
	})
}
