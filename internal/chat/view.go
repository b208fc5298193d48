package chat

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Chandu6562/chat-application/internal/domain"
)

const (
	StatusSent = "sent"
	StatusRead = "read"
)

// QuickReactions is the emoji set offered by the reaction picker.
var QuickReactions = []string{"👍", "❤️", "😂", "😮", "😢", "🙏"}

// MessageView is a render-ready projection of one message for the local user.
type MessageView struct {
	ID           string          `json:"id"`
	Text         string          `json:"text"`
	SenderID     string          `json:"sender_id"`
	Own          bool            `json:"own"`
	Timestamp    time.Time       `json:"timestamp"`
	Time         string          `json:"time,omitempty"`
	RelativeTime string          `json:"relative_time,omitempty"`
	Edited       bool            `json:"edited"`
	Status       string          `json:"status,omitempty"`
	Reactions    []ReactionGroup `json:"reactions"`
	MyReaction   string          `json:"my_reaction,omitempty"`
	Reply        *ReplyPreview   `json:"reply,omitempty"`
}

type ReactionGroup struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
	Mine  bool   `json:"mine"`
}

type ReplyPreview struct {
	ID          string `json:"id"`
	SenderLabel string `json:"sender_label"`
	Text        string `json:"text"`
}

// Project renders msgs for selfID, keeping store order.
func Project(msgs []domain.Message, selfID string, now time.Time, loc *time.Location) []MessageView {
	if loc == nil {
		loc = time.Local
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, projectOne(m, selfID, now, loc))
	}
	return views
}

func projectOne(m domain.Message, selfID string, now time.Time, loc *time.Location) MessageView {
	v := MessageView{
		ID:        m.ID,
		Text:      m.Text,
		SenderID:  m.SenderID,
		Own:       m.SenderID == selfID,
		Timestamp: m.Timestamp,
		Edited:    m.Edited,
		Reactions: groupReactions(m.Reactions, selfID),
	}
	if !m.Timestamp.IsZero() {
		v.Time = m.Timestamp.In(loc).Format("15:04")
		v.RelativeTime = humanize.RelTime(m.Timestamp, now, "ago", "from now")
	}
	if v.Own {
		v.Status = StatusSent
		if m.IsRead {
			v.Status = StatusRead
		}
	}
	if r, ok := m.ReactionBy(selfID); ok {
		v.MyReaction = r.Emoji
	}
	if m.ReplyTo != nil {
		v.Reply = replyPreview(*m.ReplyTo, selfID)
	}
	return v
}

// groupReactions counts reactions per emoji in first-seen order.
func groupReactions(reactions []domain.Reaction, selfID string) []ReactionGroup {
	groups := make([]ReactionGroup, 0, len(reactions))
	index := make(map[string]int, len(reactions))
	for _, r := range reactions {
		if r.Emoji == "" {
			continue
		}
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		if r.UserID == selfID {
			groups[i].Mine = true
		}
	}
	return groups
}

func replyPreview(ref domain.ReplyRef, selfID string) *ReplyPreview {
	label := ref.SenderName
	if ref.SenderID == selfID {
		label = "You"
	}
	return &ReplyPreview{ID: ref.ID, SenderLabel: label, Text: ref.Text}
}
