package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

// UserRepo stores users in memory. Not suitable for production.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]uuid.UUID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[emailKey(user.Email)] = user.ID
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, nil
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepo) ListExcept(_ context.Context, id uuid.UUID) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]domain.User, 0, len(r.byID))
	for uid, u := range r.byID {
		if uid == id {
			continue
		}
		users = append(users, *cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].DisplayName < users[j].DisplayName
	})
	return users, nil
}

func (r *UserRepo) UpdateProfile(_ context.Context, id uuid.UUID, displayName string, avatarURL *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.DisplayName = displayName
	if avatarURL != nil {
		url := *avatarURL
		u.AvatarURL = &url
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *UserRepo) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Online = online
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.AvatarURL != nil {
		url := *u.AvatarURL
		c.AvatarURL = &url
	}
	return &c
}

var _ repository.UserRepository = (*UserRepo)(nil)
