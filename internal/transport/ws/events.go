package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Chandu6562/chat-application/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeConversationSelect = "conversation.select"
	EventTypeConversationClear  = "conversation.clear"
	EventTypeMessageSend        = "message.send"
	EventTypeMessageEdit        = "message.edit"
	EventTypeMessageDelete      = "message.delete"
	EventTypeMessageReact       = "message.react"
	EventTypeEditBegin          = "edit.begin"
	EventTypeEditCancel         = "edit.cancel"
	EventTypeReplyBegin         = "reply.begin"
	EventTypeReplyCancel        = "reply.cancel"
	EventTypePing               = "ping"
)

// Event types - Server → Client
const (
	EventTypeConversationView = "conversation.view"
	EventTypePresence         = "presence"
	EventTypeProfile          = "profile"
	EventTypePong             = "pong"
	EventTypeError            = "error"
)

// Error codes carried by EventTypeError.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNoConversation   = "NO_CONVERSATION"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeUnknownEvent     = "UNKNOWN_EVENT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type SelectPayload struct {
	PeerID string `json:"peer_id"`
}

type SendPayload struct {
	Text string `json:"text"`
}

type EditPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MessageRefPayload struct {
	ID string `json:"id"`
}

type ReactPayload struct {
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
}

// --- Server → Client payloads ---

type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
	Online bool      `json:"online"`
}

type ProfilePayload struct {
	User *domain.User `json:"user"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	evt := &Event{Type: eventType, Timestamp: time.Now().Unix()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return evt, nil
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
