package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	DisplayName  string    `json:"display_name" bson:"display_name"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	AvatarURL    *string   `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Online       bool      `json:"online" bson:"online"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Participant is the read-only view of a user that a conversation needs.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Online      bool   `json:"online"`
}

func (u *User) Participant() Participant {
	p := Participant{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		Online:      u.Online,
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	return p
}
