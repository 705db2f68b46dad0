package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/services"
)

type ConversationHandler struct {
	messages *services.MessageService
}

func NewConversationHandler(messages *services.MessageService) *ConversationHandler {
	return &ConversationHandler{messages: messages}
}

// Current returns the caller's conversation, creating it on first visit.
func (h *ConversationHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	c, created, err := h.messages.CurrentConversation(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, models.CurrentConversationResponse{Conversation: c, Created: created})
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	msgs, err := h.messages.ListMessages(r.Context(), middleware.GetUserID(r.Context()), conversationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.MessageListResponse{Messages: msgs})
}

func (h *ConversationHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	m, err := h.messages.PostMessage(r.Context(), middleware.GetUserID(r.Context()), conversationID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.MessageResponse{Message: m})
}
