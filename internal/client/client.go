// Package client is the HTTP side of the chat view: the store API and the
// generate-chat relay, both behind the same base URL and bearer token.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"chatbot-backend/internal/models"
)

const RelayPath = "/functions/v1/generate-chat"

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

type Client struct {
	http  *resty.Client
	base  string
	token string
	log   *slog.Logger
}

// New builds a client for baseURL. A zero timeout leaves room for slow
// relay calls; a nil logger means slog.Default.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json"),
		base:  baseURL,
		token: token,
		log:   logger,
	}
}

func (c *Client) EnsureConversation(ctx context.Context) (*models.Conversation, error) {
	var out models.CurrentConversationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/conversations/current")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if out.Conversation == nil {
		return nil, fmt.Errorf("server returned no conversation")
	}
	return out.Conversation, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var out models.MessageListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("id", conversationID.String()).
		Get("/api/v1/conversations/{id}/messages")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		if m != nil {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

func (c *Client) InsertMessage(ctx context.Context, conversationID uuid.UUID, role models.Role, content string) (*models.Message, error) {
	var out models.MessageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.CreateMessageRequest{Role: role, Content: content}).
		SetResult(&out).
		SetPathParam("id", conversationID.String()).
		Post("/api/v1/conversations/{id}/messages")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if out.Message == nil {
		return nil, fmt.Errorf("server returned no message")
	}
	return out.Message, nil
}

// Generate asks the relay for a reply to messages. An empty reply is
// returned as "" with no error.
func (c *Client) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var out models.RelayResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.RelayRequest{Messages: messages}).
		SetResult(&out).
		Post(RelayPath)
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.Content, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	return decodeError(resp.StatusCode(), resp.Body())
}

// decodeError reads both error shapes the server produces: the store API's
// {"error":{"code","message"}} and the relay's {"error":"..."}.
func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		return apiErr
	}

	var flat string
	if json.Unmarshal(envelope.Error, &flat) == nil {
		apiErr.Message = flat
		return apiErr
	}

	var nested models.APIError
	if json.Unmarshal(envelope.Error, &nested) == nil {
		apiErr.Code = nested.Code
		apiErr.Message = nested.Message
	}
	return apiErr
}
