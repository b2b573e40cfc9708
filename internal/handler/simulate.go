package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/metrics"
)

const (
	minLoadDelay   = 50 * time.Millisecond
	maxLoadDelay   = 200 * time.Millisecond
	errorRate      = 0.3
	maxCPUSeconds  = 60
	memoryBlockLen = 10 << 20
)

// SimulateResponse is returned by the simulation endpoints
type SimulateResponse struct {
	Message   string    `json:"message"`
	Duration  string    `json:"duration,omitempty"`
	HeapAlloc uint64    `json:"heapAlloc,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SimulateLoad delays the response by 50-200ms
func (h *Handler) SimulateLoad(w http.ResponseWriter, r *http.Request) {
	metrics.SimulationsTotal.WithLabelValues("load").Inc()

	delay := minLoadDelay + time.Duration(h.random()*float64(maxLoadDelay-minLoadDelay))
	h.sleep(r.Context(), delay)

	h.writeJSON(w, http.StatusOK, SimulateResponse{
		Message:   "simulated load completed",
		Duration:  delay.String(),
		Timestamp: time.Now().UTC(),
	})
}

// SimulateError fails 30% of requests
func (h *Handler) SimulateError(w http.ResponseWriter, r *http.Request) {
	metrics.SimulationsTotal.WithLabelValues("error").Inc()

	if h.random() < errorRate {
		h.writeError(w, http.StatusInternalServerError, errCodeInternalError, "simulated error")
		return
	}
	h.writeJSON(w, http.StatusOK, SimulateResponse{
		Message:   "no error this time",
		Timestamp: time.Now().UTC(),
	})
}

// SimulateCPU keeps one core busy for 1-60 seconds in the background
func (h *Handler) SimulateCPU(w http.ResponseWriter, r *http.Request) {
	seconds, err := strconv.Atoi(chi.URLParam(r, "seconds"))
	if err != nil || seconds < 1 || seconds > maxCPUSeconds {
		h.writeError(w, http.StatusBadRequest, errCodeBadRequest, "seconds must be an integer between 1 and 60")
		return
	}
	metrics.SimulationsTotal.WithLabelValues("cpu").Inc()

	duration := time.Duration(seconds) * time.Second
	go burnCPU(duration)
	h.logger.Info("CPU load started", zap.Duration("duration", duration))

	h.writeJSON(w, http.StatusOK, SimulateResponse{
		Message:   "CPU load started",
		Duration:  duration.String(),
		Timestamp: time.Now().UTC(),
	})
}

// SimulateMemory allocates and touches a transient 10MB block
func (h *Handler) SimulateMemory(w http.ResponseWriter, r *http.Request) {
	metrics.SimulationsTotal.WithLabelValues("memory").Inc()

	block := make([]byte, memoryBlockLen)
	for i := 0; i < len(block); i += 4096 {
		block[i] = 1
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	runtime.KeepAlive(block)

	h.writeJSON(w, http.StatusOK, SimulateResponse{
		Message:   "allocated 10MB",
		HeapAlloc: ms.HeapAlloc,
		Timestamp: time.Now().UTC(),
	})
}

func burnCPU(d time.Duration) {
	deadline := time.Now().Add(d)
	x := 1.0
	for time.Now().Before(deadline) {
		for i := 0; i < 1000; i++ {
			x = x*1.0000001 + 1e-9
		}
	}
	_ = x
}
