package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is immutable once stored. Order within a conversation is defined
// by CreatedAt.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Before reports whether m sorts before o: creation time first, id as the
// tie breaker.
func (m Message) Before(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID.String() < o.ID.String()
}

func (m Message) ChatMessage() ChatMessage {
	return ChatMessage{Role: string(m.Role), Content: m.Content}
}

type CreateMessageRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type MessageResponse struct {
	Message *Message `json:"message"`
}

type MessageListResponse struct {
	Messages []*Message `json:"messages"`
}
