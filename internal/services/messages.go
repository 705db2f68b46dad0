package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"chatbot-backend/internal/models"
)

type conversationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	EnsureForUser(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, bool, error)
}

type messageStore interface {
	Create(ctx context.Context, m *models.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// MessageService owns the append-only conversation store and announces
// every insert on the conversation's realtime channel.
type MessageService struct {
	conversations conversationStore
	messages      messageStore
	redis         publisher
	log           *slog.Logger
}

func NewMessageService(conversations conversationStore, messages messageStore, redisClient publisher, logger *slog.Logger) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		redis:         redisClient,
		log:           logger,
	}
}

// CurrentConversation returns the user's earliest conversation, creating it
// on first visit.
func (s *MessageService) CurrentConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, bool, error) {
	c, created, err := s.conversations.EnsureForUser(ctx, userID, models.DefaultConversationTitle)
	if err != nil {
		return nil, false, fmt.Errorf("ensure conversation: %w", err)
	}
	if created {
		s.log.Info("conversation created", "conversation_id", c.ID, "user_id", userID)
	}
	return c, created, nil
}

func (s *MessageService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.Message, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *MessageService) PostMessage(ctx context.Context, userID, conversationID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error) {
	fields := map[string]string{}
	if !req.Role.Valid() {
		fields["role"] = "must be one of user, assistant, system"
	}
	if strings.TrimSpace(req.Content) == "" {
		fields["content"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	m := &models.Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           req.Role,
		Content:        req.Content,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.publishInsert(ctx, m)
	return m, nil
}

func (s *MessageService) ownedConversation(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	c, err := s.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Conversation not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if c.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return c, nil
}

// publishInsert is best effort: the row is already stored, and subscribers
// that miss it still see it on their next full load.
func (s *MessageService) publishInsert(ctx context.Context, m *models.Message) {
	data, err := json.Marshal(models.WSMessage{Type: models.EventMessageInserted, Payload: m})
	if err != nil {
		s.log.Warn("encode insert event", "message_id", m.ID, "err", err)
		return
	}
	channel := models.ConversationChannel(m.ConversationID)
	if err := s.redis.Publish(ctx, channel, string(data)).Err(); err != nil {
		s.log.Warn("publish insert event", "channel", channel, "message_id", m.ID, "err", err)
	}
}
