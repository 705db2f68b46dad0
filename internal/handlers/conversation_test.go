package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"chatbot-backend/internal/logging"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/services"
)

type stubConversationRepo struct {
	conversations map[uuid.UUID]*models.Conversation
}

func (s *stubConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, ok := s.conversations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubConversationRepo) EnsureForUser(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, bool, error) {
	for _, c := range s.conversations {
		if c.UserID == userID {
			return c, false, nil
		}
	}
	c := &models.Conversation{ID: uuid.New(), UserID: userID, Title: title, CreatedAt: time.Now()}
	s.conversations[c.ID] = c
	return c, true, nil
}

type stubMessageRepo struct {
	messages []*models.Message
}

func (s *stubMessageRepo) Create(ctx context.Context, m *models.Message) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	s.messages = append(s.messages, m)
	return nil
}

func (s *stubMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	out := []*models.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}

func newConversationHandler() (*ConversationHandler, *stubConversationRepo, *stubMessageRepo) {
	convs := &stubConversationRepo{conversations: map[uuid.UUID]*models.Conversation{}}
	msgs := &stubMessageRepo{}
	svc := services.NewMessageService(convs, msgs, nopPublisher{}, logging.Discard())
	return NewConversationHandler(svc), convs, msgs
}

func withUserAndID(req *http.Request, userID uuid.UUID, id string) *http.Request {
	rctx := chi.NewRouteContext()
	if id != "" {
		rctx.URLParams.Add("id", id)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestConversationHandler_CurrentCreatesOnFirstVisit(t *testing.T) {
	h, convs, _ := newConversationHandler()
	userID := uuid.New()

	for i, wantCreated := range []bool{true, false} {
		req := withUserAndID(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/current", nil), userID, "")
		rr := httptest.NewRecorder()
		h.Current(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("visit %d: expected status 200, got %d", i, rr.Code)
		}
		var resp models.CurrentConversationResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Created != wantCreated {
			t.Fatalf("visit %d: expected created=%v", i, wantCreated)
		}
		if resp.Conversation.UserID != userID || resp.Conversation.Title != models.DefaultConversationTitle {
			t.Fatalf("unexpected conversation: %+v", resp.Conversation)
		}
	}

	if len(convs.conversations) != 1 {
		t.Fatalf("expected exactly one conversation, got %d", len(convs.conversations))
	}
}

func TestConversationHandler_CreateAndListMessages(t *testing.T) {
	h, convs, _ := newConversationHandler()
	userID := uuid.New()
	conv, _, _ := convs.EnsureForUser(context.Background(), userID, models.DefaultConversationTitle)

	body, _ := json.Marshal(models.CreateMessageRequest{Role: models.RoleUser, Content: "Hello"})
	req := withUserAndID(httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+conv.ID.String()+"/messages", bytes.NewReader(body)), userID, conv.ID.String())
	rr := httptest.NewRecorder()
	h.CreateMessage(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	req = withUserAndID(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/messages", nil), userID, conv.ID.String())
	rr = httptest.NewRecorder()
	h.ListMessages(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var list models.MessageListResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Messages) != 1 || list.Messages[0].Content != "Hello" || list.Messages[0].Role != models.RoleUser {
		t.Fatalf("unexpected messages: %+v", list.Messages)
	}
}

func TestConversationHandler_OtherUserIsForbidden(t *testing.T) {
	h, convs, msgs := newConversationHandler()
	conv, _, _ := convs.EnsureForUser(context.Background(), uuid.New(), models.DefaultConversationTitle)

	body, _ := json.Marshal(models.CreateMessageRequest{Role: models.RoleUser, Content: "Hello"})
	req := withUserAndID(httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)), uuid.New(), conv.ID.String())
	rr := httptest.NewRecorder()
	h.CreateMessage(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
	if len(msgs.messages) != 0 {
		t.Fatalf("message must not be stored for a non-owner")
	}
}

func TestConversationHandler_BadInput(t *testing.T) {
	h, convs, _ := newConversationHandler()
	userID := uuid.New()
	conv, _, _ := convs.EnsureForUser(context.Background(), userID, models.DefaultConversationTitle)

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"invalid id", "not-a-uuid", `{"role":"user","content":"hi"}`, http.StatusBadRequest},
		{"invalid json", conv.ID.String(), `{`, http.StatusBadRequest},
		{"invalid role", conv.ID.String(), `{"role":"tool","content":"hi"}`, http.StatusBadRequest},
		{"blank content", conv.ID.String(), `{"role":"user","content":"  "}`, http.StatusBadRequest},
		{"unknown conversation", uuid.New().String(), `{"role":"user","content":"hi"}`, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := withUserAndID(httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(tc.body))), userID, tc.id)
			rr := httptest.NewRecorder()
			h.CreateMessage(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}
