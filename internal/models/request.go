package models

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type SendMessageRequest struct {
	Content             string   `json:"content"`
	ImageURL            string   `json:"image_url,omitempty"`
	AdditionalImageURLs []string `json:"additional_image_urls,omitempty"`
}

type ChatRequest struct {
	UserMessage string `json:"user_message"`
	ImageURL    string `json:"image_url,omitempty"`
}

type GenerateRequest struct {
	Prompt           string `json:"prompt"`
	OriginalImageURL string `json:"original_image_url,omitempty"`
	ConversationID   string `json:"conversation_id,omitempty"`
}

type FavoriteRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	ImageURL       string `json:"image_url"`
}

type UnfavoriteRequest struct {
	ImageURL string `json:"image_url"`
}

type TopUpRequest struct {
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	Description string `json:"description,omitempty"`
}

type UpdateProfileRequest struct {
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
