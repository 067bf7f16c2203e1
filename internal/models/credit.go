package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	TransactionGeneration  = "image_generation"
	TransactionSignupGrant = "signup_grant"
	TransactionAdminTopup  = "admin_topup"
)

type UserCredit struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CurrentBalance int
	TotalEarned    int
	TotalSpent     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreditTransaction struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Amount          int
	TransactionType string
	Description     sql.NullString
	ReferenceID     sql.NullString
	CreatedAt       time.Time
}
