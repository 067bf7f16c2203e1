package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"imagechat-backend/internal/models"
)

// RealtimeClient pushes broadcast events to Supabase Realtime so connected
// frontends see task transitions and new messages without polling.
type RealtimeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	return &RealtimeClient{
		baseURL: supabaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type broadcastMessage struct {
	Topic   string                 `json:"topic"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

func (r *RealtimeClient) broadcast(msg broadcastMessage) error {
	body, err := json.Marshal(map[string]interface{}{
		"messages": []broadcastMessage{msg},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.baseURL+"/realtime/v1/api/broadcast", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send broadcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("broadcast rejected with status %d", resp.StatusCode)
	}

	return nil
}

// NotifyTaskUpdate broadcasts a task's current state on the owner's channel.
func (r *RealtimeClient) NotifyTaskUpdate(task *models.ImageTask) error {
	payload := map[string]interface{}{
		"task_id": task.ID.String(),
		"status":  task.Status,
	}
	if task.ProcessedImageURL.Valid {
		payload["processed_image_url"] = task.ProcessedImageURL.String
	}
	if task.ErrorMessage.Valid {
		payload["error"] = task.ErrorMessage.String
	}

	return r.broadcast(broadcastMessage{
		Topic:   "tasks:" + task.UserID.String(),
		Event:   "task_update",
		Payload: payload,
	})
}

// NotifyNewMessage broadcasts a freshly persisted chat message on the
// conversation's channel.
func (r *RealtimeClient) NotifyNewMessage(conversationID uuid.UUID, msg *models.ChatMessage) error {
	payload := map[string]interface{}{
		"message_id":      msg.ID.String(),
		"conversation_id": conversationID.String(),
		"role":            msg.Role,
		"content":         msg.Content,
	}
	if msg.ImageURL.Valid {
		payload["image_url"] = msg.ImageURL.String
	}

	return r.broadcast(broadcastMessage{
		Topic:   "conversations:" + conversationID.String(),
		Event:   "new_message",
		Payload: payload,
	})
}
