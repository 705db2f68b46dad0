package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"chatbot-backend/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseUserID(token string) (uuid.UUID, error)
}

type conversationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
}

// Hub streams inserted messages to the sockets watching a conversation. It
// holds one Redis subscription per conversation with at least one socket.
type Hub struct {
	mu            sync.RWMutex
	connections   map[uuid.UUID][]*websocket.Conn
	cancelFuncs   map[uuid.UUID]context.CancelFunc
	redisClient   *redis.Client
	auth          tokenParser
	conversations conversationLookup
	log           *slog.Logger

	// subscribe feeds one conversation until ctx is cancelled.
	subscribe func(ctx context.Context, conversationID uuid.UUID)
}

func NewHub(redisClient *redis.Client, auth tokenParser, conversations conversationLookup, logger *slog.Logger) *Hub {
	h := &Hub{
		connections:   make(map[uuid.UUID][]*websocket.Conn),
		cancelFuncs:   make(map[uuid.UUID]context.CancelFunc),
		redisClient:   redisClient,
		auth:          auth,
		conversations: conversations,
		log:           logger,
	}
	h.subscribe = h.subscribeToPubSub
	return h
}

// HandleWebSocket expects ?token=<jwt>&conversation_id=<uuid>. Browsers
// cannot set headers on a websocket handshake, hence the query parameter.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID, status := h.authorize(r)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	h.registerConnection(conversationID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(conversationID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) authorize(r *http.Request) (uuid.UUID, int) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		return uuid.Nil, http.StatusUnauthorized
	}
	userID, err := h.auth.ParseUserID(tokenStr)
	if err != nil {
		return uuid.Nil, http.StatusUnauthorized
	}

	conversationID, err := uuid.Parse(r.URL.Query().Get("conversation_id"))
	if err != nil {
		return uuid.Nil, http.StatusBadRequest
	}

	c, err := h.conversations.GetByID(r.Context(), conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, http.StatusNotFound
	}
	if err != nil {
		h.log.Error("websocket conversation lookup", "conversation_id", conversationID, "err", err)
		return uuid.Nil, http.StatusInternalServerError
	}
	if c.UserID != userID {
		return uuid.Nil, http.StatusForbidden
	}
	return conversationID, http.StatusOK
}

func (h *Hub) registerConnection(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conversationID] = append(h.connections[conversationID], conn)

	if len(h.connections[conversationID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[conversationID] = cancel
		go h.subscribe(ctx, conversationID)
	}

	h.log.Info("websocket connected", "conversation_id", conversationID, "total", len(h.connections[conversationID]))
}

func (h *Hub) unregisterConnection(conversationID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[conversationID]
	for i, c := range conns {
		if c == conn {
			h.connections[conversationID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[conversationID]) == 0 {
		delete(h.connections, conversationID)
		if cancel, ok := h.cancelFuncs[conversationID]; ok {
			cancel()
			delete(h.cancelFuncs, conversationID)
		}
	}

	h.log.Info("websocket disconnected", "conversation_id", conversationID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, conversationID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, models.ConversationChannel(conversationID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(ctx, conversationID, []byte(msg.Payload))
		}
	}
}

// broadcast writes only while ctx is live. Cancel happens under the write
// lock, so a superseded subscriber never writes alongside its replacement.
func (h *Hub) broadcast(ctx context.Context, conversationID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if ctx.Err() != nil {
		return
	}

	for _, conn := range h.connections[conversationID] {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("websocket write failed", "conversation_id", conversationID, "err", err)
		}
	}
}

// Watchers reports how many sockets follow a conversation.
func (h *Hub) Watchers(conversationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[conversationID])
}
