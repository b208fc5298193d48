package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Chandu6562/chat-application/internal/chat"
	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/obs"
)

// Directory resolves user ids into conversation participants.
type Directory interface {
	Participant(ctx context.Context, id string) (domain.Participant, error)
}

type Config struct {
	// EventsPerSecond and Burst bound client events per connection. Zero
	// disables the limit.
	EventsPerSecond float64
	Burst           int
	Session         chat.Options
}

// Hub manages all active WebSocket clients. Every client owns its own
// chat.Session; the hub only fans out user-level events.
type Hub struct {
	// clients maps userID → open connections of that user.
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	profiles   chan domain.Participant
	stopped    chan struct{}

	convs     chat.Conversations
	docs      chat.Subscriber
	directory Directory
	logger    *slog.Logger
	metrics   *obs.Metrics
	cfg       Config
}

type broadcastMsg struct {
	data      []byte
	excludeID uuid.UUID // skip this user, uuid.Nil for nobody
}

func NewHub(convs chat.Conversations, docs chat.Subscriber, directory Directory, logger *slog.Logger, metrics *obs.Metrics, cfg Config) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		profiles:   make(chan domain.Participant, 64),
		stopped:    make(chan struct{}),
		convs:      convs,
		docs:       docs,
		directory:  directory,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Run starts the Hub's main event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			conns, ok := h.clients[client.userID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.userID] = conns
			}
			conns[client] = struct{}{}
			h.logger.Info("ws client connected", "user_id", client.userID, "users", len(h.clients))
			if !ok {
				h.broadcastPresence(client.userID, true)
			}

		case client := <-h.unregister:
			conns, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, ok := conns[client]; !ok {
				continue
			}
			delete(conns, client)
			client.close()
			if len(conns) == 0 {
				delete(h.clients, client.userID)
				h.broadcastPresence(client.userID, false)
			}
			h.logger.Info("ws client disconnected", "user_id", client.userID, "users", len(h.clients))

		case msg := <-h.broadcast:
			h.fanout(msg)

		case p := <-h.profiles:
			for _, conns := range h.clients {
				for client := range conns {
					client.session.RefreshParticipant(p)
				}
			}

		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					client.close()
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]struct{})
			return
		}
	}
}

// Broadcast sends an event to every connected client except excludeID.
func (h *Hub) Broadcast(event *Event, excludeID uuid.UUID) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("ws hub: marshal failed", "type", event.Type, "err", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{data: data, excludeID: excludeID}:
	case <-h.stopped:
	}
}

// RefreshParticipant pushes a profile change into every open session, both
// the user's own and those of peers chatting with them.
func (h *Hub) RefreshParticipant(p domain.Participant) {
	select {
	case h.profiles <- p:
	case <-h.stopped:
	}
}

func (h *Hub) fanout(msg *broadcastMsg) {
	for userID, conns := range h.clients {
		if userID == msg.excludeID {
			continue
		}
		for client := range conns {
			if !client.trySend(msg.data) {
				h.logger.Warn("ws client too slow, dropping event", "user_id", userID)
			}
		}
	}
}

func (h *Hub) broadcastPresence(userID uuid.UUID, online bool) {
	data, err := encodeEvent(EventTypePresence, PresencePayload{UserID: userID, Online: online})
	if err != nil {
		return
	}
	h.fanout(&broadcastMsg{data: data, excludeID: userID})
}

func (h *Hub) newSession(self domain.Participant) *chat.Session {
	return chat.NewSession(self, h.convs, h.docs, h.logger, h.metrics, h.cfg.Session)
}

func (h *Hub) newLimiter() *rate.Limiter {
	if h.cfg.EventsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := h.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.cfg.EventsPerSecond), burst)
}
