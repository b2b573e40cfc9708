package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP routes
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(prometheusMetrics)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, errCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, errCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/", h.Info)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// legacy unprefixed paths
	r.Post("/webhook/alerts", h.ReceiveWebhook)
	r.Get("/alerts/api", h.ListAlerts)
	r.Route("/simulate", h.simulateRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Info)
		r.Post("/webhook/alerts", h.ReceiveWebhook)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Delete("/", h.ClearAlerts)
			r.Get("/stats", h.AlertStats)
			r.Get("/history", h.AlertHistory)
		})

		r.Route("/simulate", h.simulateRoutes)
	})

	return r
}

func (h *Handler) simulateRoutes(r chi.Router) {
	r.Get("/load", h.SimulateLoad)
	r.Get("/error", h.SimulateError)
	r.Get("/cpu/{seconds}", h.SimulateCPU)
	r.Get("/memory", h.SimulateMemory)
}
