package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"imagechat-backend/internal/models"
)

// HTTPBackend talks to the chat API over HTTP with a bearer token. It is the
// production Backend implementation.
type HTTPBackend struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPBackend(baseURL, token string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr models.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (b *HTTPBackend) ListConversations(ctx context.Context) ([]models.ConversationResponse, error) {
	var resp models.ConversationListResponse
	if err := b.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (b *HTTPBackend) CreateConversation(ctx context.Context, title string) (*models.ConversationResponse, error) {
	var resp models.ConversationResponse
	req := models.CreateConversationRequest{Title: title}
	if err := b.do(ctx, http.MethodPost, "/api/v1/conversations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) DeleteConversation(ctx context.Context, conversationID string) error {
	return b.do(ctx, http.MethodDelete, "/api/v1/conversations/"+url.PathEscape(conversationID), nil, nil)
}

func (b *HTTPBackend) ListMessages(ctx context.Context, conversationID string) ([]models.MessageResponse, error) {
	var resp models.MessageListResponse
	path := "/api/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := b.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (b *HTTPBackend) SendChat(ctx context.Context, conversationID, content, imageURL string) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	path := "/api/v1/conversations/" + url.PathEscape(conversationID) + "/chat"
	req := models.ChatRequest{UserMessage: content, ImageURL: imageURL}
	if err := b.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) GetTask(ctx context.Context, taskID string) (*models.TaskResponse, error) {
	var resp models.TaskResponse
	if err := b.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) ListFavorites(ctx context.Context) ([]models.FavoriteResponse, error) {
	var resp models.FavoriteListResponse
	if err := b.do(ctx, http.MethodGet, "/api/v1/favorites", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Favorites, nil
}

func (b *HTTPBackend) AddFavorite(ctx context.Context, conversationID, messageID, imageURL string) (*models.FavoriteResponse, error) {
	var resp models.FavoriteResponse
	req := models.FavoriteRequest{ConversationID: conversationID, MessageID: messageID, ImageURL: imageURL}
	if err := b.do(ctx, http.MethodPost, "/api/v1/favorites", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *HTTPBackend) RemoveFavorite(ctx context.Context, imageURL string) error {
	req := models.UnfavoriteRequest{ImageURL: imageURL}
	return b.do(ctx, http.MethodDelete, "/api/v1/favorites", req, nil)
}
