package domain

import (
	"errors"
	"strings"
)

var (
	ErrEmptyParticipantID   = errors.New("participant id is empty")
	ErrInvalidParticipantID = errors.New("participant id contains the key separator")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
)

// KeySeparator joins the two participant ids of a ConversationKey. Ids
// containing it are rejected so that the encoding stays unambiguous.
const KeySeparator = ":"

// ConversationKey identifies the single record shared by a pair of users.
// The empty key means no conversation is selected.
type ConversationKey string

const NoConversation ConversationKey = ""

// DeriveKey returns the key for the pair (a, b). It is symmetric:
// DeriveKey(a, b) == DeriveKey(b, a). The greater id comes first.
func DeriveKey(a, b string) (ConversationKey, error) {
	if a == "" || b == "" {
		return NoConversation, ErrEmptyParticipantID
	}
	if strings.Contains(a, KeySeparator) || strings.Contains(b, KeySeparator) {
		return NoConversation, ErrInvalidParticipantID
	}
	if a == b {
		return NoConversation, ErrSelfConversation
	}
	if a < b {
		a, b = b, a
	}
	return ConversationKey(a + KeySeparator + b), nil
}

// Participants splits the key back into its two ids, greater first.
func (k ConversationKey) Participants() (string, string, bool) {
	a, b, ok := strings.Cut(string(k), KeySeparator)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

func (k ConversationKey) String() string {
	return string(k)
}

// Conversation is the persisted record for one pair of users. Revision is
// assigned by the store and grows by one on every committed write.
type Conversation struct {
	Key      ConversationKey `json:"key" bson:"_id"`
	Messages []Message       `json:"messages" bson:"messages"`
	Revision int64           `json:"revision" bson:"revision"`
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	return &Conversation{
		Key:      c.Key,
		Messages: CloneMessages(c.Messages),
		Revision: c.Revision,
	}
}

// Pair is the context every conversation operation runs in: who is acting,
// who the other side is, and the record they share.
type Pair struct {
	Key  ConversationKey
	Self Participant
	Peer Participant
}

func NewPair(self, peer Participant) (Pair, error) {
	key, err := DeriveKey(self.ID, peer.ID)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Key: key, Self: self, Peer: peer}, nil
}

func (p Pair) IsZero() bool {
	return p.Key == NoConversation
}

// NameOf resolves the display name of one of the two participants.
func (p Pair) NameOf(userID string) string {
	switch userID {
	case p.Self.ID:
		return p.Self.DisplayName
	case p.Peer.ID:
		return p.Peer.DisplayName
	}
	return ""
}
