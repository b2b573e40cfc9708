package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/metrics"
	"github.com/t77yq/alert-ledger/internal/model"
	"github.com/t77yq/alert-ledger/internal/storage"
)

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Status    string    `json:"status"`
	Received  int       `json:"received"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertsResponse is the body of GET /api/alerts
type AlertsResponse struct {
	Alerts []model.AlertRecord   `json:"alerts"`
	Stats  model.AggregateStats `json:"stats"`
}

// HistoryResponse is a page of archived alerts
type HistoryResponse struct {
	Items  []*storage.AlertHistory `json:"items"`
	Total  int                     `json:"total"`
	Offset int                     `json:"offset"`
	Limit  int                     `json:"limit"`
}

// ReceiveWebhook handles Alertmanager webhook notifications
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	var payload model.WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes)).Decode(&payload); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("http", "invalid").Inc()
		h.logger.Warn("Invalid webhook payload", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid webhook payload")
		return
	}

	n, err := h.ingester.Process(r.Context(), &payload)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("http", "error").Inc()
		h.logger.Error("Failed to process webhook", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errCodeInternalError, "failed to process webhook")
		return
	}
	metrics.WebhookRequestsTotal.WithLabelValues("http", "ok").Inc()

	h.logger.Info("Webhook received",
		zap.String("receiver", payload.Receiver),
		zap.String("group_key", payload.GroupKey),
		zap.Int("alerts", n))

	h.writeJSON(w, http.StatusOK, WebhookResponse{
		Status:    "ok",
		Received:  n,
		Timestamp: time.Now().UTC(),
	})
}

// ListAlerts returns the most recent alerts, newest first, with window stats.
// limit=0 returns every retained alert.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intParam(w, r, "limit", h.defaultLimit)
	if !ok {
		return
	}

	alerts := h.alerts.List(limit)
	if alerts == nil {
		alerts = []model.AlertRecord{}
	}

	h.writeJSON(w, http.StatusOK, AlertsResponse{
		Alerts: alerts,
		Stats:  h.alerts.Stats(),
	})
}

func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.alerts.Stats())
}

func (h *Handler) ClearAlerts(w http.ResponseWriter, r *http.Request) {
	h.alerts.Clear()
	h.logger.Info("Alert ledger cleared")
	w.WriteHeader(http.StatusNoContent)
}

// AlertHistory pages through the alert archive
func (h *Handler) AlertHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, errCodeNotFound, "alert history is disabled")
		return
	}

	offset, ok := h.intParam(w, r, "offset", 0)
	if !ok {
		return
	}
	limit, ok := h.intParam(w, r, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	limit = min(max(limit, 1), maxHistoryLimit)

	q := r.URL.Query()
	filter := storage.HistoryFilter{
		Status:      model.AlertStatus(q.Get("status")),
		Name:        q.Get("alertname"),
		Fingerprint: q.Get("fingerprint"),
	}

	items, err := h.history.List(r.Context(), filter, offset, limit)
	if err != nil {
		h.logger.Error("Failed to list alert history", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errCodeInternalError, "failed to list alert history")
		return
	}
	total, err := h.history.Count(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to count alert history", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errCodeInternalError, "failed to count alert history")
		return
	}
	if items == nil {
		items = []*storage.AlertHistory{}
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// intParam reads a non-negative integer query parameter, writing a 400 when it is malformed
func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.writeError(w, http.StatusBadRequest, errCodeBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
