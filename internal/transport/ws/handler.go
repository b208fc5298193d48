package ws

import (
	"context"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/Chandu6562/chat-application/internal/transport/http/middleware"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := middleware.ParseToken(tokenStr, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		self, err := hub.directory.Participant(r.Context(), userID.String())
		if err != nil {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			hub.logger.Warn("ws accept failed", "err", err)
			return
		}

		client := NewClient(hub, conn, userID, self)
		select {
		case hub.register <- client:
		case <-hub.stopped:
			client.session.Close()
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// The request context ends once the handler returns.
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-client.done
			cancel()
		}()

		go client.WritePump(ctx)
		go client.ForwardViews()
		go client.ReadPump(ctx)
	}
}
