package domain

import "time"

// Message is one entry of a conversation record. Messages are never mutated
// in place; every change produces a new value.
type Message struct {
	ID         string     `json:"id" bson:"id"`
	Text       string     `json:"text" bson:"text"`
	SenderID   string     `json:"sender_id" bson:"sender_id"`
	ReceiverID string     `json:"receiver_id" bson:"receiver_id"`
	Timestamp  time.Time  `json:"timestamp" bson:"timestamp"`
	IsRead     bool       `json:"is_read" bson:"is_read"`
	Edited     bool       `json:"edited" bson:"edited"`
	Reactions  []Reaction `json:"reactions" bson:"reactions"`
	ReplyTo    *ReplyRef  `json:"reply_to,omitempty" bson:"reply_to,omitempty"`
}

type Reaction struct {
	UserID string `json:"user_id" bson:"user_id"`
	Emoji  string `json:"emoji" bson:"emoji"`
}

// ReplyRef is a snapshot of the quoted message taken at send time. It is not
// updated when the quoted message is edited or deleted.
type ReplyRef struct {
	ID         string `json:"id" bson:"id"`
	SenderID   string `json:"sender_id" bson:"sender_id"`
	SenderName string `json:"sender_name" bson:"sender_name"`
	Text       string `json:"text" bson:"text"`
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = make([]Reaction, len(m.Reactions))
		copy(out.Reactions, m.Reactions)
	} else {
		out.Reactions = []Reaction{}
	}
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		out.ReplyTo = &ref
	}
	return out
}

// ReactionBy returns the reaction userID left on m, if any.
func (m Message) ReactionBy(userID string) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.UserID == userID {
			return r, true
		}
	}
	return Reaction{}, false
}

// CloneMessages deep copies a message sequence. A nil input yields an empty slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
