package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Conversation struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	ThumbnailURL sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID                  uuid.UUID
	ConversationID      uuid.UUID
	Role                string
	Content             string
	ImageURL            sql.NullString
	AdditionalImageURLs pq.StringArray
	CreatedAt           time.Time
}
