// Package mutation holds the pure transforms applied to a conversation's
// message sequence. Transforms never modify their input.
package mutation

import (
	"time"

	"github.com/Chandu6562/chat-application/internal/domain"
)

// Transform maps the current messages to the next ones. A false changed
// result means the record should not be written.
type Transform func(msgs []domain.Message) (next []domain.Message, changed bool)

// Append adds msg at the end of the sequence.
func Append(msg domain.Message) Transform {
	return func(msgs []domain.Message) ([]domain.Message, bool) {
		next := make([]domain.Message, 0, len(msgs)+1)
		next = append(next, msgs...)
		next = append(next, msg.Clone())
		return next, true
	}
}

// Edit replaces the text of message id and marks it edited. Retrying the same
// edit on an already edited message is a no-op.
func Edit(id, text string, at time.Time) Transform {
	return update(id, func(m domain.Message) (domain.Message, bool) {
		if m.Edited && m.Text == text {
			return m, false
		}
		m.Text = text
		m.Timestamp = at
		m.Edited = true
		return m, true
	})
}

// Delete removes message id. Deleting an absent id changes nothing.
func Delete(id string) Transform {
	return func(msgs []domain.Message) ([]domain.Message, bool) {
		idx := indexOf(msgs, id)
		if idx < 0 {
			return msgs, false
		}
		next := make([]domain.Message, 0, len(msgs)-1)
		next = append(next, msgs[:idx]...)
		next = append(next, msgs[idx+1:]...)
		return next, true
	}
}

// ToggleReaction applies userID's emoji to message id. The same emoji again
// removes it, a different emoji replaces it.
func ToggleReaction(id, userID, emoji string) Transform {
	return update(id, func(m domain.Message) (domain.Message, bool) {
		reactions := make([]domain.Reaction, 0, len(m.Reactions)+1)
		var existing *domain.Reaction
		for i := range m.Reactions {
			if m.Reactions[i].UserID == userID {
				existing = &m.Reactions[i]
				continue
			}
			reactions = append(reactions, m.Reactions[i])
		}
		if existing == nil || existing.Emoji != emoji {
			reactions = append(reactions, domain.Reaction{UserID: userID, Emoji: emoji})
		}
		m.Reactions = reactions
		return m, true
	})
}

// MarkRead flags message id as read by readerID. Messages readerID sent
// themselves, and messages already read, are left alone.
func MarkRead(id, readerID string) Transform {
	return update(id, func(m domain.Message) (domain.Message, bool) {
		if m.SenderID == readerID || m.IsRead {
			return m, false
		}
		m.IsRead = true
		return m, true
	})
}

func update(id string, fn func(domain.Message) (domain.Message, bool)) Transform {
	return func(msgs []domain.Message) ([]domain.Message, bool) {
		idx := indexOf(msgs, id)
		if idx < 0 {
			return msgs, false
		}
		updated, changed := fn(msgs[idx].Clone())
		if !changed {
			return msgs, false
		}
		next := make([]domain.Message, len(msgs))
		copy(next, msgs)
		next[idx] = updated
		return next, true
	}
}

func indexOf(msgs []domain.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}
