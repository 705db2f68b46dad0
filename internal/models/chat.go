package models

// ChatMessage is the role/content pair exchanged with the relay and the
// upstream completion API.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// RelayRequest is the payload accepted by the generate-chat relay.
type RelayRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
}

// RelayResponse is the relay's success body. Content may be empty.
type RelayResponse struct {
	Content string `json:"content"`
}

// RelayError is the relay's error body.
type RelayError struct {
	Error string `json:"error"`
}
