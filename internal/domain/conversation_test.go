package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeySymmetric(t *testing.T) {
	ab, err := DeriveKey("alice", "bob")
	require.NoError(t, err)
	ba, err := DeriveKey("bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, ConversationKey("bob:alice"), ab)

	a, b, ok := ab.Participants()
	require.True(t, ok)
	assert.Equal(t, "bob", a)
	assert.Equal(t, "alice", b)
}

func TestDeriveKeyDistinctPairs(t *testing.T) {
	// Plain concatenation would map both pairs to "abc".
	k1, err := DeriveKey("ab", "c")
	require.NoError(t, err)
	k2, err := DeriveKey("a", "bc")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestDeriveKeyRejects(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want error
	}{
		{"empty", "", "bob", ErrEmptyParticipantID},
		{"self", "bob", "bob", ErrSelfConversation},
		{"separator", "a:b", "c", ErrInvalidParticipantID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKey(tt.a, tt.b)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, NoConversation, key)
		})
	}
}

func TestPairNameOf(t *testing.T) {
	self := Participant{ID: "u1", DisplayName: "Ana"}
	peer := Participant{ID: "u2", DisplayName: "Bo"}
	pair, err := NewPair(self, peer)
	require.NoError(t, err)

	assert.False(t, pair.IsZero())
	assert.Equal(t, "Ana", pair.NameOf("u1"))
	assert.Equal(t, "Bo", pair.NameOf("u2"))
	assert.True(t, Pair{}.IsZero())
}

func TestMessageCloneIsDeep(t *testing.T) {
	m := Message{ID: "m1", Reactions: []Reaction{{UserID: "u1", Emoji: "👍"}}, ReplyTo: &ReplyRef{ID: "m0"}}
	c := m.Clone()
	c.Reactions[0].Emoji = "❤️"
	c.ReplyTo.ID = "changed"

	assert.Equal(t, "👍", m.Reactions[0].Emoji)
	assert.Equal(t, "m0", m.ReplyTo.ID)
}
