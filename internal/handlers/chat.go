package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/services"
)

// RelayHandler is the generate-chat relay: one conversation in, one reply
// out, nothing kept between calls.
type RelayHandler struct {
	completer    services.Completer
	defaultModel string
	log          *slog.Logger
}

func NewRelayHandler(completer services.Completer, defaultModel string, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		completer:    completer,
		defaultModel: defaultModel,
		log:          logger,
	}
}

func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		middleware.RelayCORS.SetHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.completer.Configured() {
		writeRelay(w, http.StatusBadRequest, models.RelayError{Error: "Missing upstream API key"})
		return
	}

	var req struct {
		Messages json.RawMessage `json:"messages"`
		Model    string          `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelay(w, http.StatusBadRequest, models.RelayError{Error: "Invalid request body"})
		return
	}

	messages, ok := parseMessages(req.Messages)
	if !ok {
		writeRelay(w, http.StatusBadRequest, models.RelayError{Error: "'messages' array is required"})
		return
	}

	model := req.Model
	if model == "" {
		model = h.defaultModel
	}

	content, err := h.completer.Complete(r.Context(), model, messages)
	if err != nil {
		h.logUpstreamError(r, model, err)
		writeRelay(w, http.StatusInternalServerError, models.RelayError{Error: "Upstream error"})
		return
	}

	writeRelay(w, http.StatusOK, models.RelayResponse{Content: content})
}

// parseMessages accepts only a non-empty JSON array of role/content pairs.
func parseMessages(raw json.RawMessage) ([]models.ChatMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false
	}
	return messages, len(messages) > 0
}

func (h *RelayHandler) logUpstreamError(r *http.Request, model string, err error) {
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		h.log.Error("upstream completion failed",
			"provider", upstream.Provider,
			"model", model,
			"status", upstream.Status,
			"body", upstream.Body,
		)
		return
	}
	h.log.Error("upstream completion failed", "model", model, "err", err)
}

func writeRelay(w http.ResponseWriter, status int, data interface{}) {
	middleware.RelayCORS.SetHeaders(w.Header())
	writeJSON(w, status, data)
}
