package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/servicenegotiator/api/internal/repository"
)

// DeadLetterLister defines the interface for inspecting failed billing events.
type DeadLetterLister interface {
	ListFailedEvents(ctx context.Context, limit int) ([]repository.FailedEvent, error)
}

// AdminHandler provides operator-only endpoints for debugging and operations.
type AdminHandler struct {
	deadLetters DeadLetterLister
	logger      *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(deadLetters DeadLetterLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// FailedEventResponse represents a dead-lettered billing event.
type FailedEventResponse struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Subject    string          `json:"subject,omitempty"`
	Reason     string          `json:"reason"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// FailedEventListResponse represents the dead-letter listing response.
type FailedEventListResponse struct {
	Events []FailedEventResponse `json:"events"`
	Total  int                   `json:"total"`
}

// ListFailedBillingEvents handles GET /admin/billing/dead-letters?limit={n}
// Returns billing events whose effect was lost after acknowledgment, newest
// first, for manual inspection and replay.
func (h *AdminHandler) ListFailedBillingEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.deadLetters.ListFailedEvents(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list dead-letter events", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list dead-letter events")
		return
	}

	response := FailedEventListResponse{
		Events: make([]FailedEventResponse, 0, len(events)),
		Total:  len(events),
	}

	for _, ev := range events {
		response.Events = append(response.Events, FailedEventResponse{
			ID:         ev.ID,
			EventID:    ev.EventID,
			EventType:  ev.EventType,
			Subject:    ev.Subject,
			Reason:     ev.Reason,
			Payload:    json.RawMessage(ev.Payload),
			ReceivedAt: ev.ReceivedAt,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
