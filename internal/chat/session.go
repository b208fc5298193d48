// Package chat holds the per-client conversation state machine: which
// conversation is open, the live message list, and pending edit/reply
// selections.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Chandu6562/chat-application/internal/domain"
	"github.com/Chandu6562/chat-application/internal/livedoc"
	"github.com/Chandu6562/chat-application/internal/obs"
	"github.com/Chandu6562/chat-application/internal/service"
)

var ErrSessionClosed = errors.New("chat session closed")

const defaultReceiptTimeout = 5 * time.Second

// Conversations is the mutation side the session drives.
type Conversations interface {
	Send(ctx context.Context, pair domain.Pair, text string, replyTo *domain.Message) (*domain.Message, error)
	Edit(ctx context.Context, key domain.ConversationKey, id, text string) error
	Delete(ctx context.Context, key domain.ConversationKey, id string) error
	React(ctx context.Context, key domain.ConversationKey, id, userID, emoji string) error
	MarkRead(ctx context.Context, key domain.ConversationKey, id, readerID string) error
}

// Subscriber opens live subscriptions on conversation records.
type Subscriber interface {
	Subscribe(ctx context.Context, key domain.ConversationKey) (*livedoc.Subscription, error)
}

type Options struct {
	// ReceiptTimeout bounds each automatic mark-read write.
	ReceiptTimeout time.Duration
	Location       *time.Location
	Now            func() time.Time
}

// View is everything the presentation layer renders for one session.
type View struct {
	Selected  bool                `json:"selected"`
	Peer      *domain.Participant `json:"peer,omitempty"`
	Messages  []MessageView       `json:"messages"`
	EditingID string              `json:"editing_id,omitempty"`
	Reply     *ReplyPreview       `json:"reply,omitempty"`
}

type Session struct {
	selfID  string
	convs   Conversations
	docs    Subscriber
	logger  *slog.Logger
	metrics *obs.Metrics
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	self      domain.Participant
	pair      domain.Pair
	messages  []domain.Message
	editingID string
	replyTo   *domain.Message
	sub       *livedoc.Subscription
	gen       uint64
	closed    bool

	updates chan View
}

func NewSession(self domain.Participant, convs Conversations, docs Subscriber, logger *slog.Logger, metrics *obs.Metrics, opts Options) *Session {
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = defaultReceiptTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		selfID:  self.ID,
		self:    self,
		convs:   convs,
		docs:    docs,
		logger:  logger.With("user_id", self.ID),
		metrics: metrics,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan View, 1),
	}
}

// Updates delivers the latest View after every change. Only the newest
// unread View is kept.
func (s *Session) Updates() <-chan View {
	return s.updates
}

func (s *Session) Self() domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Session) IsConversationSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pair.IsZero()
}

// Messages returns the projected list of the open conversation.
func (s *Session) Messages() []MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Project(s.messages, s.selfID, s.opts.Now(), s.opts.Location)
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// SelectConversation opens the conversation with peer. The previous
// subscription is closed and the list starts empty until the first snapshot
// of the new conversation arrives. Selecting the open conversation again
// resubscribes if its subscription failed or ended.
func (s *Session) SelectConversation(peer domain.Participant) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	pair, err := domain.NewPair(s.self, peer)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.pair.Key == pair.Key && s.sub != nil {
		s.pair = pair
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
	old := s.resetLocked(pair)
	gen := s.gen
	s.publishLocked()
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	sub, err := s.docs.Subscribe(s.ctx, pair.Key)
	if err != nil {
		return fmt.Errorf("%w: subscribing: %w", service.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		sub.Close()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	s.logger.Debug("conversation selected", "conversation", pair.Key)
	go s.reconcile(sub, pair, gen)
	return nil
}

// ClearConversation returns to the "nothing selected" state.
func (s *Session) ClearConversation() {
	s.mu.Lock()
	old := s.resetLocked(domain.Pair{})
	s.publishLocked()
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// resetLocked switches the active pair and returns the subscription the
// caller must close outside the lock.
func (s *Session) resetLocked(pair domain.Pair) *livedoc.Subscription {
	old := s.sub
	s.gen++
	s.pair = pair
	s.sub = nil
	s.messages = nil
	s.editingID = ""
	s.replyTo = nil
	return old
}

// SendMessage sends text to the open conversation, quoting the pending reply
// if there is one. While an edit is pending the text replaces that message
// instead.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	pair, editingID, replyTo := s.pair, s.editingID, s.replyTo
	s.mu.Unlock()

	if editingID != "" {
		return s.EditMessage(ctx, editingID, text)
	}
	if _, err := s.convs.Send(ctx, pair, text, replyTo); err != nil {
		return err
	}
	s.clearDrafts(pair.Key)
	return nil
}

func (s *Session) EditMessage(ctx context.Context, id, text string) error {
	key := s.activeKey()
	if err := s.convs.Edit(ctx, key, id, text); err != nil {
		return err
	}
	s.clearDrafts(key)
	return nil
}

func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	key := s.activeKey()
	if err := s.convs.Delete(ctx, key, id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.pair.Key == key && s.editingID == id {
		s.editingID = ""
		s.publishLocked()
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) ReactToMessage(ctx context.Context, id, emoji string) error {
	return s.convs.React(ctx, s.activeKey(), id, s.selfID, emoji)
}

// BeginEdit marks id as the message the next send will replace. It reports
// false when id is not in the open conversation. Any pending reply is
// dropped.
func (s *Session) BeginEdit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			s.editingID = id
			s.replyTo = nil
			s.publishLocked()
			return true
		}
	}
	return false
}

func (s *Session) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editingID == "" {
		return
	}
	s.editingID = ""
	s.publishLocked()
}

// BeginReply quotes message id in the next send. It reports false when id
// is not in the open conversation. Any pending edit is dropped.
func (s *Session) BeginReply(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			quoted := m.Clone()
			s.replyTo = &quoted
			s.editingID = ""
			s.publishLocked()
			return true
		}
	}
	return false
}

func (s *Session) CancelReply() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replyTo == nil {
		return
	}
	s.replyTo = nil
	s.publishLocked()
}

// Close releases the subscription. The session cannot be reused.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	old := s.resetLocked(domain.Pair{})
	s.mu.Unlock()

	s.cancel()
	if old != nil {
		old.Close()
	}
}

// RefreshParticipant applies a profile change of p to the local user or the
// open peer. Later reply snapshots use the new display name.
func (s *Session) RefreshParticipant(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	if p.ID == s.selfID {
		s.self = p
		if !s.pair.IsZero() {
			s.pair.Self = p
		}
		changed = true
	}
	if !s.pair.IsZero() && p.ID == s.pair.Peer.ID {
		s.pair.Peer = p
		changed = true
	}
	if changed && !s.closed {
		s.publishLocked()
	}
}

func (s *Session) activeKey() domain.ConversationKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair.Key
}

func (s *Session) clearDrafts(key domain.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair.Key != key {
		return
	}
	if s.editingID == "" && s.replyTo == nil {
		return
	}
	s.editingID = ""
	s.replyTo = nil
	s.publishLocked()
}

// reconcile applies snapshots of one subscription until it is closed.
// Snapshots arriving after the selection moved on are dropped.
func (s *Session) reconcile(sub *livedoc.Subscription, pair domain.Pair, gen uint64) {
	for snap := range sub.C {
		if snap.Err != nil {
			s.logger.Warn("conversation snapshot failed", "conversation", pair.Key, "err", snap.Err)
			continue
		}

		s.mu.Lock()
		if s.gen != gen || snap.Key != s.pair.Key {
			s.mu.Unlock()
			continue
		}
		s.messages = snap.Messages()
		unread := s.unreadLocked()
		s.publishLocked()
		s.mu.Unlock()

		for _, id := range unread {
			if !s.isCurrent(gen) {
				break
			}
			s.markRead(pair.Key, id)
		}
	}

	// Delivery ended without Close from this session. Forget the
	// subscription so selecting the conversation again reopens it.
	s.mu.Lock()
	stale := s.sub == sub
	if stale {
		s.sub = nil
	}
	s.mu.Unlock()
	if stale {
		s.logger.Warn("conversation subscription ended", "conversation", pair.Key)
		sub.Close()
	}
}

func (s *Session) unreadLocked() []string {
	var ids []string
	for _, m := range s.messages {
		if m.SenderID != s.selfID && !m.IsRead {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// markRead is fire-and-forget: failures are logged and picked up again by
// the next snapshot.
func (s *Session) markRead(key domain.ConversationKey, id string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.ReceiptTimeout)
	defer cancel()
	err := s.convs.MarkRead(ctx, key, id, s.selfID)
	s.metrics.ReadReceipt(err)
	if err != nil {
		s.logger.Warn("mark read failed", "conversation", key, "message_id", id, "err", err)
	}
}

func (s *Session) viewLocked() View {
	v := View{
		Selected:  !s.pair.IsZero(),
		Messages:  Project(s.messages, s.selfID, s.opts.Now(), s.opts.Location),
		EditingID: s.editingID,
	}
	if v.Selected {
		peer := s.pair.Peer
		v.Peer = &peer
	}
	if s.replyTo != nil {
		v.Reply = replyPreview(domain.ReplyRef{
			ID:         s.replyTo.ID,
			SenderID:   s.replyTo.SenderID,
			SenderName: s.pair.NameOf(s.replyTo.SenderID),
			Text:       s.replyTo.Text,
		}, s.selfID)
	}
	return v
}

// publishLocked replaces any unread View with the current one.
func (s *Session) publishLocked() {
	v := s.viewLocked()
	select {
	case s.updates <- v:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- v:
		default:
		}
	}
}
