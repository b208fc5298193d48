package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Chandu6562/chat-application/internal/chat"
	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/service"
	"github.com/Chandu6562/chat-application/internal/transport/http/middleware"
)

type ConversationHandler struct {
	convService *service.ConversationService
	userService *service.UserService
	logger      *slog.Logger
	now         func() time.Time
}

func NewConversationHandler(convService *service.ConversationService, userService *service.UserService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		convService: convService,
		userService: userService,
		logger:      logger,
		now:         time.Now,
	}
}

type conversationResponse struct {
	Key      domain.ConversationKey `json:"key"`
	Peer     domain.Participant     `json:"peer"`
	Messages []chat.MessageView     `json:"messages"`
}

// Messages returns the projected message list shared with {peerID}. It is a
// one-shot read; live updates go over the websocket.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	selfID := middleware.GetUserID(r.Context())

	peer, err := h.userService.Participant(r.Context(), r.PathValue("peerID"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("resolve peer failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	key, err := domain.DeriveKey(selfID.String(), peer.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONVERSATION", err.Error())
		return
	}

	msgs, err := h.convService.Messages(r.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			h.logger.Warn("conversation read failed", "conversation", key, "err", err)
			writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Conversation store is unavailable")
			return
		}
		h.logger.Error("list messages failed", "conversation", key, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		Key:      key,
		Peer:     peer,
		Messages: chat.Project(msgs, selfID.String(), h.now(), time.UTC),
	})
}
