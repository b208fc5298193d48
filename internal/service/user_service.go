package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/repository"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUnsupportedAvatar  = errors.New("avatar must be a png, jpeg, gif or webp image")
	ErrAvatarStoreMissing = errors.New("avatar storage is not configured")
)

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore persists avatar images and returns a durable public URL.
type AvatarStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

type UserService struct {
	userRepo repository.UserRepository
	avatars  AvatarStore
	notifier Notifier
	logger   *slog.Logger
}

func NewUserService(userRepo repository.UserRepository, avatars AvatarStore, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		avatars:  avatars,
		logger:   logger,
	}
}

func (s *UserService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Participant resolves a user id string into the participant a conversation
// is opened with.
func (s *UserService) Participant(ctx context.Context, id string) (domain.Participant, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.Participant{}, ErrUserNotFound
	}
	user, err := s.Get(ctx, uid)
	if err != nil {
		return domain.Participant{}, err
	}
	return user.Participant(), nil
}

// ListPeers returns every user the caller can chat with.
func (s *UserService) ListPeers(ctx context.Context, id uuid.UUID) ([]domain.User, error) {
	users, err := s.userRepo.ListExcept(ctx, id)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *UserService) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, user, strings.TrimSpace(displayName), nil)
}

// UploadAvatar stores the image and points the user's avatar URL at it.
func (s *UserService) UploadAvatar(ctx context.Context, id uuid.UUID, reader io.Reader, contentType string) (*domain.User, error) {
	if s.avatars == nil {
		return nil, ErrAvatarStoreMissing
	}
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedAvatar
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := path.Join("avatars", id.String(), uuid.NewString()+ext)
	url, err := s.avatars.Upload(ctx, key, reader, contentType)
	if err != nil {
		return nil, fmt.Errorf("uploading avatar: %w", err)
	}
	return s.updateProfile(ctx, user, user.DisplayName, &url)
}

func (s *UserService) updateProfile(ctx context.Context, user *domain.User, displayName string, avatarURL *string) (*domain.User, error) {
	if err := s.userRepo.UpdateProfile(ctx, user.ID, displayName, avatarURL); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	user.DisplayName = displayName
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
	s.logger.Info("profile updated", "user_id", user.ID)
	if s.notifier != nil {
		s.notifier.NotifyProfile(user)
	}
	return user, nil
}
