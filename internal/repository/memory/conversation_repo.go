package memory

import (
	"context"
	"sync"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

// ConversationRepo keeps conversation records in process memory. Records
// are cloned on the way in and out so callers never share backing arrays.
type ConversationRepo struct {
	mu      sync.RWMutex
	records map[domain.ConversationKey]*domain.Conversation
}

func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{records: make(map[domain.ConversationKey]*domain.Conversation)}
}

func (r *ConversationRepo) Get(_ context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (r *ConversationRepo) Put(_ context.Context, key domain.ConversationKey, messages []domain.Message) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revision int64 = 1
	if prev, ok := r.records[key]; ok {
		revision = prev.Revision + 1
	}
	rec := &domain.Conversation{
		Key:      key,
		Messages: domain.CloneMessages(messages),
		Revision: revision,
	}
	r.records[key] = rec
	return rec.Clone(), nil
}

var _ repository.ConversationRepository = (*ConversationRepo)(nil)
