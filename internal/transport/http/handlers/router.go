package handlers

import (
	"net/http"

	"github.com/Chandu6562/chat-application/internal/transport/http/middleware"
)

// Routes collects everything mounted on the API mux. WebSocket and Metrics
// are optional.
type Routes struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Conversations *ConversationHandler
	JWTSecret     string
	WebSocket     http.Handler
	Metrics       http.Handler
}

func (rt Routes) Mux() *http.ServeMux {
	auth := middleware.Auth(rt.JWTSecret)
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", rt.Auth.Login)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
	if rt.WebSocket != nil {
		mux.Handle("GET /ws", rt.WebSocket)
	}

	// Protected - Auth
	mux.Handle("POST /api/v1/auth/logout", auth(http.HandlerFunc(rt.Auth.Logout)))

	// Protected - Users
	mux.Handle("GET /api/v1/users/me", auth(http.HandlerFunc(rt.Users.Me)))
	mux.Handle("PATCH /api/v1/users/me", auth(http.HandlerFunc(rt.Users.UpdateProfile)))
	mux.Handle("POST /api/v1/users/me/avatar", auth(http.HandlerFunc(rt.Users.UploadAvatar)))
	mux.Handle("GET /api/v1/users", auth(http.HandlerFunc(rt.Users.ListPeers)))

	// Protected - Conversations
	mux.Handle("GET /api/v1/conversations/{peerID}/messages", auth(http.HandlerFunc(rt.Conversations.Messages)))

	return mux
}
