package ws

import (
	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyPresence(userID uuid.UUID, online bool) {
	evt, err := NewEvent(EventTypePresence, PresencePayload{UserID: userID, Online: online})
	if err != nil {
		n.hub.logger.Error("ws notifier: marshal failed", "err", err)
		return
	}
	n.hub.Broadcast(evt, userID)
}

func (n *HubNotifier) NotifyProfile(user *domain.User) {
	n.hub.RefreshParticipant(user.Participant())
	evt, err := NewEvent(EventTypeProfile, ProfilePayload{User: user})
	if err != nil {
		n.hub.logger.Error("ws notifier: marshal failed", "err", err)
		return
	}
	n.hub.Broadcast(evt, uuid.Nil)
}
