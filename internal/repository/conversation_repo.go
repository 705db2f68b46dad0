package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatbot-backend/internal/models"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	return insertConversation(ctx, r.pool, c)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, user_id, title, created_at FROM conversations WHERE id = $1", id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetEarliestByUser returns pgx.ErrNoRows when the user has no conversation.
func (r *ConversationRepo) GetEarliestByUser(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	return earliestConversation(ctx, r.pool, userID)
}

// EnsureForUser returns the user's earliest conversation, creating one when
// none exists. A per-user advisory lock serializes concurrent first visits
// so two tabs cannot each create a conversation.
func (r *ConversationRepo) EnsureForUser(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID.String()); err != nil {
		return nil, false, fmt.Errorf("lock conversations for user: %w", err)
	}

	existing, err := earliestConversation(ctx, tx, userID)
	if err == nil {
		return existing, false, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	c := &models.Conversation{UserID: userID, Title: title}
	if err := insertConversation(ctx, tx, c); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return c, true, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func earliestConversation(ctx context.Context, q querier, userID uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := q.QueryRow(ctx, `SELECT id, user_id, title, created_at
		FROM conversations WHERE user_id = $1
		ORDER BY created_at ASC LIMIT 1`, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func insertConversation(ctx context.Context, q querier, c *models.Conversation) error {
	c.ID = uuid.New()
	if c.Title == "" {
		c.Title = models.DefaultConversationTitle
	}
	return q.QueryRow(ctx,
		"INSERT INTO conversations (id, user_id, title) VALUES ($1, $2, $3) RETURNING created_at",
		c.ID, c.UserID, c.Title,
	).Scan(&c.CreatedAt)
}
