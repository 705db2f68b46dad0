package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chatbot-backend/internal/handlers"
	"chatbot-backend/internal/logging"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/services"
	"chatbot-backend/internal/websocket"
)

type fixedCompleter struct{ reply string }

func (f fixedCompleter) Configured() bool { return true }

func (f fixedCompleter) Complete(ctx context.Context, model string, messages []models.ChatMessage) (string, error) {
	return f.reply, nil
}

type emptyConversations struct{}

func (emptyConversations) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return &models.Conversation{ID: id}, nil
}

func (emptyConversations) EnsureForUser(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, bool, error) {
	return &models.Conversation{ID: uuid.New(), UserID: userID, Title: title}, true, nil
}

type emptyMessages struct{}

func (emptyMessages) Create(ctx context.Context, m *models.Message) error { return nil }

func (emptyMessages) ListByConversation(ctx context.Context, id uuid.UUID) ([]*models.Message, error) {
	return nil, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}

func newTestRouter(requireAuth bool) (http.Handler, *middleware.JWTAuth) {
	logger := logging.Discard()
	jwtAuth := middleware.NewJWTAuth("router-secret")
	svc := services.NewMessageService(emptyConversations{}, emptyMessages{}, nopPublisher{}, logger)
	hub := websocket.NewHub(nil, jwtAuth, emptyConversations{}, logger)
	h := New(logger, jwtAuth,
		handlers.NewConversationHandler(svc),
		handlers.NewRelayHandler(fixedCompleter{reply: "Hi there"}, "openrouter/auto", logger),
		hub,
		Options{FrontendURL: "http://localhost:5173", RelayRequireAuth: requireAuth},
	)
	return h, jwtAuth
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(true)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouter_RelayPreflightWithoutToken(t *testing.T) {
	h, _ := newTestRouter(true)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/functions/v1/generate-chat", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected permissive CORS on preflight")
	}
}

func TestRouter_RelayRequiresToken(t *testing.T) {
	h, jwtAuth := newTestRouter(true)
	body := `{"messages":[{"role":"user","content":"Hello"}]}`

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/v1/generate-chat", strings.NewReader(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS headers on auth errors too")
	}

	token, _ := jwtAuth.GenerateAccessToken(uuid.New(), time.Minute)
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/generate-chat", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Hi there") {
		t.Fatalf("unexpected relay response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouter_RelayOpenWhenAuthDisabled(t *testing.T) {
	h, _ := newTestRouter(false)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/v1/generate-chat", strings.NewReader(`{"messages":[{"role":"user","content":"Hello"}]}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouter_ConversationRoutesRequireToken(t *testing.T) {
	h, jwtAuth := newTestRouter(true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/current", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	token, _ := jwtAuth.GenerateAccessToken(uuid.New(), time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/current", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected API CORS origin, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}
