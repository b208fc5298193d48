package service

import (
	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
)

// Notifier pushes user-level changes to connected clients.
type Notifier interface {
	NotifyPresence(userID uuid.UUID, online bool)
	NotifyProfile(user *domain.User)
}
