package models

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Balance *int   `json:"current_balance,omitempty"`
}

type ConversationResponse struct {
	ID           string    `json:"conversation_id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

type MessageResponse struct {
	ID                  string    `json:"message_id"`
	ConversationID      string    `json:"conversation_id"`
	Role                string    `json:"role"`
	Content             string    `json:"content"`
	ImageURL            string    `json:"image_url,omitempty"`
	AdditionalImageURLs []string  `json:"additional_image_urls,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type ChatResponse struct {
	UserMessage         MessageResponse `json:"user_message"`
	Message             MessageResponse `json:"message"`
	GenerationAttempted bool            `json:"generation_attempted"`
}

type TaskResponse struct {
	TaskID            string    `json:"task_id"`
	Status            string    `json:"status"`
	ProcessedImageURL string    `json:"processed_image_url,omitempty"`
	Error             string    `json:"error,omitempty"`
	PredictionID      string    `json:"prediction_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type UploadResponse struct {
	URLs   []string          `json:"urls"`
	Errors []UploadErrorInfo `json:"errors,omitempty"`
}

type UploadErrorInfo struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Stage    string `json:"stage"`
}

type FavoriteResponse struct {
	ID             string    `json:"favorite_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	ImageURL       string    `json:"image_url"`
	CreatedAt      time.Time `json:"created_at"`
}

type FavoriteListResponse struct {
	Favorites []FavoriteResponse `json:"favorites"`
}

type BalanceResponse struct {
	UserID         string `json:"user_id"`
	CurrentBalance int    `json:"current_balance"`
	TotalEarned    int    `json:"total_earned"`
	TotalSpent     int    `json:"total_spent"`
}

type TransactionResponse struct {
	ID              string    `json:"transaction_id"`
	Amount          int       `json:"amount"`
	TransactionType string    `json:"transaction_type"`
	Description     string    `json:"description,omitempty"`
	ReferenceID     string    `json:"reference_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type ProfileResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
