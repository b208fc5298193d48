package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Chandu6562/chat-application/internal/chat"
	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/livedoc"
	"github.com/Chandu6562/chat-application/internal/repository/memory"
	"github.com/Chandu6562/chat-application/internal/service"
)

const testSecret = "ws-secret"

type harness struct {
	srv  *httptest.Server
	hub  *Hub
	auth *service.AuthService
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := memory.NewUserRepo()
	docs := livedoc.New(memory.NewConversationRepo(), livedoc.NewLocalFeed(), logger, nil)
	convs := service.NewConversationService(docs, service.NewClock(nil), logger, nil)
	userSvc := service.NewUserService(users, nil, logger)

	hub := NewHub(convs, docs, userSvc, logger, nil, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("GET /ws", ServeWS(hub, testSecret))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &harness{srv: srv, hub: hub, auth: service.NewAuthService(users, testSecret, logger)}
}

func (h *harness) register(t *testing.T, name string) *service.AuthResponse {
	t.Helper()
	resp, err := h.auth.Register(context.Background(), service.RegisterInput{
		Email:       strings.ToLower(name) + "@example.com",
		DisplayName: name,
		Password:    "Secret123",
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	evt := Event{Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		evt.Payload = data
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, evt))
}

// readUntil reads events until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var evt Event
		require.NoError(t, wsjson.Read(ctx, conn, &evt))
		if match(evt) {
			return evt
		}
	}
}

func readView(t *testing.T, conn *websocket.Conn, match func(chat.View) bool) chat.View {
	t.Helper()
	var view chat.View
	readUntil(t, conn, func(evt Event) bool {
		if evt.Type != EventTypeConversationView {
			return false
		}
		var v chat.View
		require.NoError(t, json.Unmarshal(evt.Payload, &v))
		if !match(v) {
			return false
		}
		view = v
		return true
	})
	return view
}

func readError(t *testing.T, conn *websocket.Conn) ErrorPayload {
	t.Helper()
	evt := readUntil(t, conn, func(evt Event) bool { return evt.Type == EventTypeError })
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	return p
}

func TestServeWSRejectsBadToken(t *testing.T) {
	h := newHarness(t, Config{})

	resp, err := http.Get(h.srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/ws?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationOverWebSocket(t *testing.T) {
	h := newHarness(t, Config{})
	ana := h.register(t, "Ana")
	bo := h.register(t, "Bo")

	anaConn := h.dial(t, ana.AccessToken)
	boConn := h.dial(t, bo.AccessToken)

	send(t, anaConn, EventTypeConversationSelect, SelectPayload{PeerID: bo.User.ID.String()})
	v := readView(t, anaConn, func(v chat.View) bool { return v.Selected })
	require.NotNil(t, v.Peer)
	assert.Equal(t, "Bo", v.Peer.DisplayName)

	send(t, anaConn, EventTypeMessageSend, SendPayload{Text: "  hello Bo  "})
	v = readView(t, anaConn, func(v chat.View) bool { return len(v.Messages) == 1 })
	assert.Equal(t, "hello Bo", v.Messages[0].Text)
	assert.Equal(t, chat.StatusSent, v.Messages[0].Status)
	msgID := v.Messages[0].ID

	send(t, boConn, EventTypeConversationSelect, SelectPayload{PeerID: ana.User.ID.String()})
	v = readView(t, boConn, func(v chat.View) bool { return len(v.Messages) == 1 })
	assert.False(t, v.Messages[0].Own)

	// Bo opening the conversation marks Ana's message read.
	readView(t, anaConn, func(v chat.View) bool {
		return len(v.Messages) == 1 && v.Messages[0].Status == chat.StatusRead
	})

	send(t, boConn, EventTypeMessageReact, ReactPayload{ID: msgID, Emoji: "👍"})
	v = readView(t, anaConn, func(v chat.View) bool {
		return len(v.Messages) == 1 && len(v.Messages[0].Reactions) == 1
	})
	assert.Equal(t, "👍", v.Messages[0].Reactions[0].Emoji)
	assert.False(t, v.Messages[0].Reactions[0].Mine)

	send(t, anaConn, EventTypeEditBegin, MessageRefPayload{ID: msgID})
	readView(t, anaConn, func(v chat.View) bool { return v.EditingID == msgID })
	send(t, anaConn, EventTypeMessageSend, SendPayload{Text: "hello again"})
	v = readView(t, boConn, func(v chat.View) bool {
		return len(v.Messages) == 1 && v.Messages[0].Edited
	})
	assert.Equal(t, "hello again", v.Messages[0].Text)

	send(t, boConn, EventTypeReplyBegin, MessageRefPayload{ID: msgID})
	v = readView(t, boConn, func(v chat.View) bool { return v.Reply != nil })
	assert.Equal(t, "Ana", v.Reply.SenderLabel)
	send(t, boConn, EventTypeReplyCancel, nil)
	readView(t, boConn, func(v chat.View) bool { return v.Reply == nil })

	send(t, anaConn, EventTypeMessageDelete, MessageRefPayload{ID: msgID})
	readView(t, boConn, func(v chat.View) bool { return v.Selected && len(v.Messages) == 0 })

	send(t, anaConn, EventTypeConversationClear, nil)
	readView(t, anaConn, func(v chat.View) bool { return !v.Selected })
}

func TestClientErrors(t *testing.T) {
	h := newHarness(t, Config{})
	ana := h.register(t, "Ana")
	conn := h.dial(t, ana.AccessToken)

	send(t, conn, "typing.start", nil)
	assert.Equal(t, CodeUnknownEvent, readError(t, conn).Code)

	send(t, conn, EventTypeMessageSend, SendPayload{Text: "hi"})
	assert.Equal(t, CodeNoConversation, readError(t, conn).Code)

	send(t, conn, EventTypeMessageSend, nil)
	assert.Equal(t, CodeInvalidPayload, readError(t, conn).Code)

	send(t, conn, EventTypeConversationSelect, SelectPayload{PeerID: uuid.NewString()})
	assert.Equal(t, CodeNotFound, readError(t, conn).Code)

	send(t, conn, EventTypeConversationSelect, SelectPayload{PeerID: ana.User.ID.String()})
	assert.Equal(t, CodeValidation, readError(t, conn).Code)

	send(t, conn, EventTypeReplyBegin, MessageRefPayload{ID: "missing"})
	assert.Equal(t, CodeNotFound, readError(t, conn).Code)

	send(t, conn, EventTypeEditBegin, MessageRefPayload{ID: "missing"})
	assert.Equal(t, CodeNotFound, readError(t, conn).Code)

	send(t, conn, EventTypePing, nil)
	readUntil(t, conn, func(evt Event) bool { return evt.Type == EventTypePong })
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, Config{EventsPerSecond: 0.001, Burst: 1})
	ana := h.register(t, "Ana")
	conn := h.dial(t, ana.AccessToken)

	send(t, conn, EventTypePing, nil)
	readUntil(t, conn, func(evt Event) bool { return evt.Type == EventTypePong })

	send(t, conn, EventTypePing, nil)
	assert.Equal(t, CodeRateLimited, readError(t, conn).Code)
}

func TestPresenceBroadcast(t *testing.T) {
	h := newHarness(t, Config{})
	ana := h.register(t, "Ana")
	bo := h.register(t, "Bo")

	anaConn := h.dial(t, ana.AccessToken)
	// Round trip so Ana is registered before Bo connects.
	send(t, anaConn, EventTypePing, nil)
	readUntil(t, anaConn, func(evt Event) bool { return evt.Type == EventTypePong })

	h.dial(t, bo.AccessToken)
	evt := readUntil(t, anaConn, func(evt Event) bool { return evt.Type == EventTypePresence })
	var p PresencePayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, bo.User.ID, p.UserID)
	assert.True(t, p.Online)

	NewHubNotifier(h.hub).NotifyPresence(bo.User.ID, false)
	evt = readUntil(t, anaConn, func(evt Event) bool { return evt.Type == EventTypePresence })
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.False(t, p.Online)
}

func TestProfileChangeUpdatesOpenSessions(t *testing.T) {
	h := newHarness(t, Config{})
	ana := h.register(t, "Ana")
	bo := h.register(t, "Bo")
	anaConn := h.dial(t, ana.AccessToken)

	send(t, anaConn, EventTypeConversationSelect, SelectPayload{PeerID: bo.User.ID.String()})
	v := readView(t, anaConn, func(v chat.View) bool { return v.Selected })
	require.NotNil(t, v.Peer)
	assert.Equal(t, "Bo", v.Peer.DisplayName)

	renamed := *bo.User
	renamed.DisplayName = "Bobby"
	NewHubNotifier(h.hub).NotifyProfile(&renamed)

	v = readView(t, anaConn, func(v chat.View) bool { return v.Peer != nil && v.Peer.DisplayName == "Bobby" })
	assert.True(t, v.Selected)
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{service.ErrEmptyText, CodeValidation},
		{domain.ErrSelfConversation, CodeValidation},
		{service.ErrNoConversation, CodeNoConversation},
		{fmt.Errorf("%w: boom", service.ErrStoreUnavailable), CodeStoreUnavailable},
		{service.ErrUserNotFound, CodeNotFound},
		{errors.New("something else"), CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorCode(tc.err), tc.err.Error())
	}
}
