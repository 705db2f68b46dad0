package services

import (
	"context"

	"chatbot-backend/internal/models"
)

// Completer forwards a conversation to an upstream completion API and
// returns the reply text of the first choice. A reply with no choice is ""
// with a nil error.
type Completer interface {
	// Configured reports whether the upstream credential is present.
	Configured() bool
	Complete(ctx context.Context, model string, messages []models.ChatMessage) (string, error)
}
