package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Chandu6562/chat-application/internal/chat"
	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 8192
	sendBufSize    = 256
)

// Client is a single WebSocket connection and the chat session it drives.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uuid.UUID
	session *chat.Session
	limiter *rate.Limiter
	logger  *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, self domain.Participant) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		session: hub.newSession(self),
		limiter: hub.newLimiter(),
		logger:  hub.logger.With("user_id", userID),
		send:    make(chan []byte, sendBufSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// trySend queues data without blocking. It reports false when the buffer is
// full or the client is gone.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump reads events from the WebSocket and applies them to the session.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.session.Close()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.logger.Debug("ws client closed connection")
			} else {
				c.logger.Warn("ws read failed", "err", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError(CodeRateLimited, "too many events, slow down")
			continue
		}
		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued events and pings to the WebSocket.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Warn("ws write failed", "err", err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.Warn("ws ping failed", "err", err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// ForwardViews pushes every session View to the socket until the client is
// gone. It blocks on a full buffer, letting the session coalesce views.
func (c *Client) ForwardViews() {
	for {
		select {
		case view := <-c.session.Updates():
			data, err := encodeEvent(EventTypeConversationView, view)
			if err != nil {
				c.logger.Error("ws: marshal view failed", "err", err)
				continue
			}
			select {
			case c.send <- data:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event to the session.
func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeConversationSelect:
		var p SelectPayload
		if !c.decode(event, &p) {
			return
		}
		peer, err := c.hub.directory.Participant(ctx, p.PeerID)
		if err != nil {
			c.sendFailure(err)
			return
		}
		c.sendFailure(c.session.SelectConversation(peer))

	case EventTypeConversationClear:
		c.session.ClearConversation()

	case EventTypeMessageSend:
		var p SendPayload
		if !c.decode(event, &p) {
			return
		}
		c.sendFailure(c.session.SendMessage(ctx, p.Text))

	case EventTypeMessageEdit:
		var p EditPayload
		if !c.decode(event, &p) {
			return
		}
		c.sendFailure(c.session.EditMessage(ctx, p.ID, p.Text))

	case EventTypeMessageDelete:
		var p MessageRefPayload
		if !c.decode(event, &p) {
			return
		}
		c.sendFailure(c.session.DeleteMessage(ctx, p.ID))

	case EventTypeMessageReact:
		var p ReactPayload
		if !c.decode(event, &p) {
			return
		}
		c.sendFailure(c.session.ReactToMessage(ctx, p.ID, p.Emoji))

	case EventTypeEditBegin:
		var p MessageRefPayload
		if !c.decode(event, &p) {
			return
		}
		if !c.session.BeginEdit(p.ID) {
			c.sendError(CodeNotFound, "message not found in this conversation")
		}

	case EventTypeEditCancel:
		c.session.CancelEdit()

	case EventTypeReplyBegin:
		var p MessageRefPayload
		if !c.decode(event, &p) {
			return
		}
		if !c.session.BeginReply(p.ID) {
			c.sendError(CodeNotFound, "message not found in this conversation")
		}

	case EventTypeReplyCancel:
		c.session.CancelReply()

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError(CodeUnknownEvent, "unknown event type: "+event.Type)
	}
}

func (c *Client) decode(event *Event, into any) bool {
	if len(event.Payload) == 0 {
		c.sendError(CodeInvalidPayload, "missing "+event.Type+" payload")
		return false
	}
	if err := json.Unmarshal(event.Payload, into); err != nil {
		c.sendError(CodeInvalidPayload, "invalid "+event.Type+" payload")
		return false
	}
	return true
}

// sendFailure reports err to the client, if any.
func (c *Client) sendFailure(err error) {
	if err == nil {
		return
	}
	code := errorCode(err)
	if code == CodeInternal {
		c.logger.Error("ws event failed", "err", err)
	}
	c.sendError(code, err.Error())
}

func errorCode(err error) string {
	switch {
	case service.IsValidation(err),
		errors.Is(err, domain.ErrSelfConversation),
		errors.Is(err, domain.ErrEmptyParticipantID),
		errors.Is(err, domain.ErrInvalidParticipantID):
		return CodeValidation
	case errors.Is(err, service.ErrNoConversation):
		return CodeNoConversation
	case errors.Is(err, service.ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, service.ErrUserNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

func (c *Client) sendPong() {
	data, err := encodeEvent(EventTypePong, nil)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *Client) sendError(code, message string) {
	data, err := encodeEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.trySend(data)
}
