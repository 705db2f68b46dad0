package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatbot-backend/internal/chat"
	"chatbot-backend/internal/models"
)

// Subscribe opens the live insert feed for one conversation.
func (c *Client) Subscribe(ctx context.Context, conversationID uuid.UUID) (chat.Subscription, error) {
	u, err := wsURL(c.base, c.token, conversationID)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s := &wsSubscription{
		conn:    conn,
		inserts: make(chan models.Message, 32),
		done:    make(chan struct{}),
		log:     c.log.With("conversation_id", conversationID),
	}
	go s.read()
	return s, nil
}

func wsURL(base, token string, conversationID uuid.UUID) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/v1/ws")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("conversation_id", conversationID.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type wsSubscription struct {
	conn      *websocket.Conn
	inserts   chan models.Message
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func (s *wsSubscription) Inserts() <-chan models.Message { return s.inserts }

// Close ends the feed. Inserts is closed once the reader has stopped.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *wsSubscription) read() {
	defer close(s.inserts)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("live feed closed", "err", err)
			}
			return
		}

		m, ok := decodeInsert(data)
		if !ok {
			continue
		}
		select {
		case s.inserts <- m:
		case <-s.done:
			return
		}
	}
}

func decodeInsert(data []byte) (models.Message, bool) {
	var frame struct {
		Type    string         `json:"type"`
		Payload models.Message `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return models.Message{}, false
	}
	if frame.Type != models.EventMessageInserted || frame.Payload.ID == uuid.Nil {
		return models.Message{}, false
	}
	return frame.Payload, true
}
