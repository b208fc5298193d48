package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/livedoc"
	"github.com/Chandu6562/chat-application/internal/repository/memory"
	"github.com/Chandu6562/chat-application/internal/service"
)

const testSecret = "handler-secret"

type fakeAvatars struct {
	keys []string
}

func (f *fakeAvatars) Upload(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type testServer struct {
	mux     *http.ServeMux
	convs   *service.ConversationService
	avatars *fakeAvatars
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := memory.NewUserRepo()
	docs := livedoc.New(memory.NewConversationRepo(), livedoc.NewLocalFeed(), logger, nil)
	avatars := &fakeAvatars{}

	authSvc := service.NewAuthService(users, testSecret, logger)
	userSvc := service.NewUserService(users, avatars, logger)
	convSvc := service.NewConversationService(docs, service.NewClock(nil), logger, nil)

	rt := Routes{
		Auth:          NewAuthHandler(authSvc, logger),
		Users:         NewUserHandler(userSvc, logger),
		Conversations: NewConversationHandler(convSvc, userSvc, logger),
		JWTSecret:     testSecret,
	}
	return &testServer{mux: rt.Mux(), convs: convSvc, avatars: avatars}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email, name string) service.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "display_name": name, "password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp service.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)
	ana := s.register(t, "ana@example.com", "Ana")
	assert.NotEmpty(t, ana.AccessToken)
	assert.True(t, ana.User.Online)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ANA@example.com", "display_name": "Ana 2", "password": "Secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "Secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/logout", ana.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/me", ana.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.False(t, me.Online)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "bad", "display_name": "", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileAndPeers(t *testing.T) {
	s := newTestServer(t)
	ana := s.register(t, "ana@example.com", "Ana")
	s.register(t, "bo@example.com", "Bo")

	rec := s.do(t, http.MethodGet, "/api/v1/users", ana.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var peers []domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &peers))
	require.Len(t, peers, 1)
	assert.Equal(t, "Bo", peers[0].DisplayName)

	rec = s.do(t, http.MethodPatch, "/api/v1/users/me", ana.AccessToken, map[string]string{"display_name": "Ana Maria"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ana Maria")

	rec = s.do(t, http.MethodPatch, "/api/v1/users/me", ana.AccessToken, map[string]string{"display_name": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func avatarRequest(t *testing.T, token, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t)
	ana := s.register(t, "ana@example.com", "Ana")

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, avatarRequest(t, ana.AccessToken, "image/png"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.NotNil(t, user.AvatarURL)
	assert.True(t, strings.HasPrefix(*user.AvatarURL, "https://cdn.example.com/avatars/"+ana.User.ID.String()+"/"))
	assert.Len(t, s.avatars.keys, 1)

	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, avatarRequest(t, ana.AccessToken, "text/plain"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestConversationMessages(t *testing.T) {
	s := newTestServer(t)
	ana := s.register(t, "ana@example.com", "Ana")
	bo := s.register(t, "bo@example.com", "Bo")

	pair, err := domain.NewPair(ana.User.Participant(), bo.User.Participant())
	require.NoError(t, err)
	_, err = s.convs.Send(context.Background(), pair, "hi Bo", nil)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/v1/conversations/"+ana.User.ID.String()+"/messages", bo.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Key      string `json:"key"`
		Messages []struct {
			Text string `json:"text"`
			Own  bool   `json:"own"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(pair.Key), resp.Key)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hi Bo", resp.Messages[0].Text)
	assert.False(t, resp.Messages[0].Own)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations/"+ana.User.ID.String()+"/messages", ana.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations/not-a-user/messages", ana.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
