package models

import "github.com/google/uuid"

const EventMessageInserted = "message_inserted"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ConversationChannel is the pub/sub channel carrying inserts for one
// conversation.
func ConversationChannel(conversationID uuid.UUID) string {
	return "conversation_messages:" + conversationID.String()
}
