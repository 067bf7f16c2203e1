package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// FavoriteImage marks a single image URL, not a whole message: a message
// carrying several images has independent favorite state per URL.
type FavoriteImage struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	ImageURL       string
	CreatedAt      time.Time
}

type Profile struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  sql.NullString
	AvatarURL sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}
