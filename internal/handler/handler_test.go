package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/alert-ledger/internal/ledger"
	"github.com/t77yq/alert-ledger/internal/model"
	"github.com/t77yq/alert-ledger/internal/service"
	"github.com/t77yq/alert-ledger/internal/storage"
)

const webhookBody = `{
  "version": "4",
  "groupKey": "{}:{alertname=\"HighCPU\"}",
  "receiver": "demo-app",
  "status": "firing",
  "alerts": [
    {
      "status": "firing",
      "labels": {"alertname": "HighCPU", "severity": "critical"},
      "annotations": {"summary": "CPU above 90%"},
      "startsAt": "2024-01-01T00:00:00Z",
      "endsAt": "0001-01-01T00:00:00Z",
      "fingerprint": "abc123"
    },
    {
      "status": "resolved",
      "labels": {"alertname": "HighMemory"},
      "startsAt": "2024-01-01T00:00:00Z",
      "endsAt": "2024-01-01T00:05:00Z",
      "fingerprint": "def456"
    }
  ]
}`

type testServer struct {
	handler *Handler
	ledger  *ledger.Ledger
	history *storage.SQLiteAlertHistory
	router  http.Handler
}

func newTestServer(t *testing.T, withHistory bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ts := &testServer{ledger: ledger.New(100)}

	opts := Options{
		Name:             "demo-app",
		Version:          "test",
		DefaultListLimit: 50,
		Alerts:           ts.ledger,
	}

	var archiver service.Archiver
	if withHistory {
		history, err := storage.NewSQLiteAlertHistory(logger, filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { history.Close() })
		ts.history = history
		archiver = history
		opts.History = history
	}
	opts.Ingester = service.NewIngestor(logger, ts.ledger, archiver, nil)

	ts.handler = NewHandler(logger, opts)
	ts.router = ts.handler.Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, code, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func TestReceiveWebhook(t *testing.T) {
	for _, path := range []string{"/api/webhook/alerts", "/webhook/alerts"} {
		t.Run(path, func(t *testing.T) {
			ts := newTestServer(t, false)

			rec := ts.do(t, http.MethodPost, path, webhookBody)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decode[WebhookResponse](t, rec)
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, 2, resp.Received)
			assert.False(t, resp.Timestamp.IsZero())

			alerts := ts.ledger.List(0)
			require.Len(t, alerts, 2)
			assert.Equal(t, "HighMemory", alerts[0].Name)
			assert.Equal(t, model.AlertStatusResolved, alerts[0].Status)
			require.NotNil(t, alerts[0].EndsAt)
			assert.Equal(t, "HighCPU", alerts[1].Name)
			assert.Nil(t, alerts[1].EndsAt)
			assert.Equal(t, "CPU above 90%", alerts[1].Summary())
			assert.Equal(t, "abc123", alerts[1].Fingerprint)
		})
	}
}

func TestReceiveWebhook_Malformed(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/api/webhook/alerts", `{"alerts": [`)
	requireErrorCode(t, rec, http.StatusBadRequest, errCodeBadRequest)
	assert.Zero(t, ts.ledger.Len())
}

func TestReceiveWebhook_NoAlerts(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/api/webhook/alerts", `{"receiver": "demo-app"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[WebhookResponse](t, rec).Received)
}

func TestListAlerts(t *testing.T) {
	ts := newTestServer(t, false)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/webhook/alerts", webhookBody).Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AlertsResponse](t, rec)
	assert.Len(t, resp.Alerts, 6)
	assert.Equal(t, 6, resp.Stats.Total)
	assert.Equal(t, 3, resp.Stats.Firing)
	assert.Equal(t, 3, resp.Stats.Resolved)
	require.NotNil(t, resp.Stats.LastReceivedAt)

	rec = ts.do(t, http.MethodGet, "/api/alerts?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[AlertsResponse](t, rec)
	require.Len(t, resp.Alerts, 2)
	assert.Equal(t, "HighMemory", resp.Alerts[0].Name)
	assert.Equal(t, 6, resp.Stats.Total)

	rec = ts.do(t, http.MethodGet, "/alerts/api?limit=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AlertsResponse](t, rec).Alerts, 6)
}

func TestListAlerts_Empty(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alerts":[],"stats":{"total":0,"firing":0,"resolved":0,"lastReceived":null}}`, rec.Body.String())
}

func TestListAlerts_BadLimit(t *testing.T) {
	ts := newTestServer(t, false)

	for _, q := range []string{"abc", "-1", "1.5"} {
		rec := ts.do(t, http.MethodGet, "/api/alerts?limit="+q, "")
		requireErrorCode(t, rec, http.StatusBadRequest, errCodeBadRequest)
	}
}

func TestAlertStatsAndClear(t *testing.T) {
	ts := newTestServer(t, false)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/webhook/alerts", webhookBody).Code)

	rec := ts.do(t, http.MethodGet, "/api/alerts/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.AggregateStats](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Firing)
	assert.Equal(t, 1, stats.Resolved)

	rec = ts.do(t, http.MethodDelete, "/api/alerts", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	stats = decode[model.AggregateStats](t, ts.do(t, http.MethodGet, "/api/alerts/stats", ""))
	assert.Equal(t, model.AggregateStats{}, stats)
}

func TestAlertHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, false)
		rec := ts.do(t, http.MethodGet, "/api/alerts/history", "")
		requireErrorCode(t, rec, http.StatusNotFound, errCodeNotFound)
	})

	t.Run("enabled", func(t *testing.T) {
		ts := newTestServer(t, true)
		for i := 0; i < 2; i++ {
			require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/webhook/alerts", webhookBody).Code)
		}
		// the archive survives a cleared ledger
		require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/alerts", "").Code)

		rec := ts.do(t, http.MethodGet, "/api/alerts/history", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[HistoryResponse](t, rec)
		assert.Equal(t, 4, resp.Total)
		assert.Len(t, resp.Items, 4)
		assert.Equal(t, defaultHistoryLimit, resp.Limit)

		rec = ts.do(t, http.MethodGet, "/api/alerts/history?status=firing&limit=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decode[HistoryResponse](t, rec)
		assert.Equal(t, 2, resp.Total)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "HighCPU", resp.Items[0].Name)

		rec = ts.do(t, http.MethodGet, "/api/alerts/history?alertname=HighMemory&offset=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decode[HistoryResponse](t, rec)
		assert.Equal(t, 2, resp.Total)
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, 1, resp.Offset)

		rec = ts.do(t, http.MethodGet, "/api/alerts/history?offset=x", "")
		requireErrorCode(t, rec, http.StatusBadRequest, errCodeBadRequest)
	})
}

func TestSimulateError(t *testing.T) {
	ts := newTestServer(t, false)

	ts.handler.random = func() float64 { return 0.1 }
	rec := ts.do(t, http.MethodGet, "/api/simulate/error", "")
	requireErrorCode(t, rec, http.StatusInternalServerError, errCodeInternalError)

	ts.handler.random = func() float64 { return 0.9 }
	rec = ts.do(t, http.MethodGet, "/simulate/error", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSimulateLoad(t *testing.T) {
	ts := newTestServer(t, false)

	var slept time.Duration
	ts.handler.random = func() float64 { return 0.5 }
	ts.handler.sleep = func(_ context.Context, d time.Duration) { slept = d }

	rec := ts.do(t, http.MethodGet, "/api/simulate/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 125*time.Millisecond, slept)
	assert.Equal(t, "125ms", decode[SimulateResponse](t, rec).Duration)
}

func TestSimulateCPU(t *testing.T) {
	ts := newTestServer(t, false)

	for _, s := range []string{"0", "61", "abc"} {
		rec := ts.do(t, http.MethodGet, "/api/simulate/cpu/"+s, "")
		requireErrorCode(t, rec, http.StatusBadRequest, errCodeBadRequest)
	}

	rec := ts.do(t, http.MethodGet, "/api/simulate/cpu/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1s", decode[SimulateResponse](t, rec).Duration)
}

func TestSimulateMemory(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/api/simulate/memory", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, decode[SimulateResponse](t, rec).HeapAlloc)
}

func TestInfoAndHealth(t *testing.T) {
	ts := newTestServer(t, false)

	for _, path := range []string{"/", "/api"} {
		rec := ts.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		info := decode[InfoResponse](t, rec)
		assert.Equal(t, "demo-app", info.Name)
		assert.NotEmpty(t, info.Endpoints)
	}

	rec := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.GreaterOrEqual(t, health.Uptime, float64(0))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/alerts", "").Code)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "demo_app_http_requests_total")
	assert.Contains(t, body, `route="/api/alerts`)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, false)

	requireErrorCode(t, ts.do(t, http.MethodGet, "/nope", ""), http.StatusNotFound, errCodeNotFound)
	requireErrorCode(t, ts.do(t, http.MethodPut, "/api/alerts", ""), http.StatusMethodNotAllowed, errCodeMethodNotAllowed)
}
