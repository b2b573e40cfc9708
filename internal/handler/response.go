package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeNotFound         = "NOT_FOUND"
	errCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	errCodeInternalError    = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
