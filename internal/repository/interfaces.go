package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
)

// ErrNotFound is returned by updates that address a row which does not exist.
var ErrNotFound = errors.New("record not found")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListExcept returns every user other than id, ordered by display name.
	ListExcept(ctx context.Context, id uuid.UUID) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, displayName string, avatarURL *string) error
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
}

// ConversationRepository stores one record per conversation key. Put replaces
// the whole message sequence; the last writer wins.
type ConversationRepository interface {
	// Get returns nil, nil when no record exists for key.
	Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error)
	// Put creates or replaces the record and returns it with its new revision.
	Put(ctx context.Context, key domain.ConversationKey, messages []domain.Message) (*domain.Conversation, error)
}

// ChangeFeed carries "record key changed at revision N" notifications between
// writers and subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, key domain.ConversationKey, revision int64) error
	Subscribe(ctx context.Context, key domain.ConversationKey) (FeedSubscription, error)
}

type FeedSubscription interface {
	C() <-chan int64
	Close() error
}
