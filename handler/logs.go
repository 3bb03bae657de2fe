package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mstgnz/hummpay/infra/opensearch"
	"github.com/mstgnz/hummpay/infra/response"
)

// CallLogReader reads the provider call log.
type CallLogReader interface {
	RecentCalls(ctx context.Context, operation string, size int) ([]opensearch.CallLog, error)
}

// LogsHandler handles logs related HTTP requests
type LogsHandler struct {
	calls CallLogReader
}

// NewLogsHandler creates a new logs handler. A nil reader means logging is disabled.
func NewLogsHandler(calls CallLogReader) *LogsHandler {
	return &LogsHandler{calls: calls}
}

// ListCalls handles GET /admin/humm/calls?operation=&size=.
func (h *LogsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		response.Error(w, http.StatusServiceUnavailable, "Call logging is disabled", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	size := 20
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(w, http.StatusBadRequest, "size must be a positive integer", nil)
			return
		}
		size = parsed
	}
	operation := r.URL.Query().Get("operation")

	calls, err := h.calls.RecentCalls(ctx, operation, size)
	if err != nil {
		response.Error(w, http.StatusBadGateway, "Failed to read call logs", err)
		return
	}
	response.Success(w, http.StatusOK, "", map[string]any{
		"operation": operation,
		"count":     len(calls),
		"calls":     calls,
	})
}
