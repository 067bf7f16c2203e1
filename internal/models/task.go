package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// ImageTask is one attempt to produce a generated or edited image. Rows are
// append-only: status moves processing -> completed|failed and never again.
type ImageTask struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	ConversationID    uuid.NullUUID
	OriginalImageURL  sql.NullString
	Prompt            string
	Status            string
	ProcessedImageURL sql.NullString
	ErrorMessage      sql.NullString
	PredictionID      sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
