package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Chandu6562/chat-application/internal/service"
	"github.com/Chandu6562/chat-application/internal/transport/http/middleware"
	"github.com/Chandu6562/chat-application/pkg/validator"
)

const maxAvatarBytes = 5 << 20

type UserHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeUserError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListPeers returns every other registered user, i.e. everyone the caller
// can open a conversation with.
func (h *UserHandler) ListPeers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListPeers(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeUserError(w, "list peers", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateProfile(input.DisplayName); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.userService.UpdateDisplayName(r.Context(), middleware.GetUserID(r.Context()), input.DisplayName)
	if err != nil {
		h.writeUserError(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Avatar must be a multipart upload under 5MB")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Missing avatar file")
		return
	}
	defer file.Close()

	user, err := h.userService.UploadAvatar(r.Context(), middleware.GetUserID(r.Context()), file, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeUserError(w, "upload avatar", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) writeUserError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrUnsupportedAvatar):
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_AVATAR", err.Error())
	case errors.Is(err, service.ErrAvatarStoreMissing):
		writeError(w, http.StatusServiceUnavailable, "AVATARS_DISABLED", err.Error())
	default:
		h.logger.Error(op+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
