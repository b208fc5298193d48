package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chandu6562/chat-application/internal/domain"
)

// ConversationRepo keeps each conversation as one row with the messages in
// a JSONB column.
type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	query := `SELECT messages, revision FROM conversations WHERE key = $1`

	var raw []byte
	conv := domain.Conversation{Key: key}
	err := r.pool.QueryRow(ctx, query, string(key)).Scan(&raw, &conv.Revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &conv.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages of %s: %w", key, err)
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}
	return &conv, nil
}

func (r *ConversationRepo) Put(ctx context.Context, key domain.ConversationKey, messages []domain.Message) (*domain.Conversation, error) {
	if messages == nil {
		messages = []domain.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encoding messages of %s: %w", key, err)
	}

	query := `
		INSERT INTO conversations (key, messages, revision, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (key) DO UPDATE
			SET messages = EXCLUDED.messages,
				revision = conversations.revision + 1,
				updated_at = now()
		RETURNING revision`

	conv := &domain.Conversation{Key: key, Messages: domain.CloneMessages(messages)}
	if err := r.pool.QueryRow(ctx, query, string(key), raw).Scan(&conv.Revision); err != nil {
		return nil, err
	}
	return conv, nil
}
