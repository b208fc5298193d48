package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/mutation"
	"github.com/Chandu6562/chat-application/internal/obs"
)

var (
	ErrEmptyText        = errors.New("message text is empty")
	ErrEmptyEmoji       = errors.New("reaction emoji is empty")
	ErrNoConversation   = errors.New("no conversation selected")
	ErrStoreUnavailable = errors.New("conversation store unavailable")
)

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyText) || errors.Is(err, ErrEmptyEmoji)
}

// Documents is the live document the service reads and writes.
type Documents interface {
	ReadOnce(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error)
	Write(ctx context.Context, key domain.ConversationKey, messages []domain.Message) (*domain.Conversation, error)
}

// ConversationService applies mutations to conversation records as
// read, transform, write. Concurrent writers to the same record can lose
// each other's updates; the last write wins.
type ConversationService struct {
	docs    Documents
	clock   *Clock
	logger  *slog.Logger
	metrics *obs.Metrics
}

func NewConversationService(docs Documents, clock *Clock, logger *slog.Logger, metrics *obs.Metrics) *ConversationService {
	return &ConversationService{
		docs:    docs,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Send appends a new message from pair.Self to pair.Peer. When replyTo is
// set, a snapshot of it is frozen into the new message.
func (s *ConversationService) Send(ctx context.Context, pair domain.Pair, text string, replyTo *domain.Message) (*domain.Message, error) {
	if pair.IsZero() {
		return nil, ErrNoConversation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		Text:       text,
		SenderID:   pair.Self.ID,
		ReceiverID: pair.Peer.ID,
		Timestamp:  s.clock.Now(),
		Reactions:  []domain.Reaction{},
	}
	if replyTo != nil {
		msg.ReplyTo = &domain.ReplyRef{
			ID:         replyTo.ID,
			SenderID:   replyTo.SenderID,
			SenderName: pair.NameOf(replyTo.SenderID),
			Text:       replyTo.Text,
		}
	}

	if err := s.apply(ctx, "send", pair.Key, mutation.Append(msg)); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces the text of message id. Unknown ids are ignored.
func (s *ConversationService) Edit(ctx context.Context, key domain.ConversationKey, id, text string) error {
	if key == domain.NoConversation {
		return ErrNoConversation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return s.apply(ctx, "edit", key, mutation.Edit(id, text, s.clock.Now()))
}

// Delete removes message id. Unknown ids are ignored.
func (s *ConversationService) Delete(ctx context.Context, key domain.ConversationKey, id string) error {
	if key == domain.NoConversation {
		return ErrNoConversation
	}
	return s.apply(ctx, "delete", key, mutation.Delete(id))
}

// React toggles userID's emoji reaction on message id.
func (s *ConversationService) React(ctx context.Context, key domain.ConversationKey, id, userID, emoji string) error {
	if key == domain.NoConversation {
		return ErrNoConversation
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return ErrEmptyEmoji
	}
	return s.apply(ctx, "react", key, mutation.ToggleReaction(id, userID, emoji))
}

// MarkRead flags message id as read on behalf of readerID.
func (s *ConversationService) MarkRead(ctx context.Context, key domain.ConversationKey, id, readerID string) error {
	if key == domain.NoConversation {
		return ErrNoConversation
	}
	return s.apply(ctx, "mark_read", key, mutation.MarkRead(id, readerID))
}

// Messages returns the current messages of key, empty if none were sent yet.
func (s *ConversationService) Messages(ctx context.Context, key domain.ConversationKey) ([]domain.Message, error) {
	rec, err := s.docs.ReadOnce(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading conversation: %w", ErrStoreUnavailable, err)
	}
	if rec == nil {
		return []domain.Message{}, nil
	}
	return rec.Messages, nil
}

func (s *ConversationService) apply(ctx context.Context, op string, key domain.ConversationKey, t mutation.Transform) (err error) {
	defer func() { s.metrics.Mutation(op, err) }()

	rec, err := s.docs.ReadOnce(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: reading conversation: %w", ErrStoreUnavailable, err)
	}
	var current []domain.Message
	if rec != nil {
		current = rec.Messages
	}

	next, changed := t(current)
	if !changed {
		s.logger.Debug("conversation unchanged", "op", op, "conversation", key)
		return nil
	}

	if _, err := s.docs.Write(ctx, key, next); err != nil {
		return fmt.Errorf("%w: writing conversation: %w", ErrStoreUnavailable, err)
	}
	return nil
}
