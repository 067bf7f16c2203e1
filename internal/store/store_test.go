package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagechat-backend/internal/models"
)

type fakeBackend struct {
	mu sync.Mutex

	conversations []models.ConversationResponse
	messages      map[string][]models.MessageResponse
	favorites     []models.FavoriteResponse
	tasks         map[string]models.TaskResponse

	listConversationCalls int
	listFavoriteCalls     int
	taskPolls             int

	sendErr     error
	favoriteErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages: make(map[string][]models.MessageResponse),
		tasks:    make(map[string]models.TaskResponse),
	}
}

func (f *fakeBackend) ListConversations(ctx context.Context) ([]models.ConversationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listConversationCalls++
	return append([]models.ConversationResponse(nil), f.conversations...), nil
}

func (f *fakeBackend) CreateConversation(ctx context.Context, title string) (*models.ConversationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := models.ConversationResponse{ID: uuid.NewString(), Title: title}
	f.conversations = append(f.conversations, conv)
	return &conv, nil
}

func (f *fakeBackend) DeleteConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.conversations[:0]
	for _, conv := range f.conversations {
		if conv.ID != conversationID {
			kept = append(kept, conv)
		}
	}
	f.conversations = kept
	return nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, conversationID string) ([]models.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MessageResponse(nil), f.messages[conversationID]...), nil
}

func (f *fakeBackend) SendChat(ctx context.Context, conversationID, content, imageURL string) (*models.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}

	userMsg := models.MessageResponse{
		ID: uuid.NewString(), ConversationID: conversationID,
		Role: models.RoleUser, Content: content, ImageURL: imageURL,
	}
	assistantMsg := models.MessageResponse{
		ID: uuid.NewString(), ConversationID: conversationID,
		Role: models.RoleAssistant, Content: "Done!",
	}
	f.messages[conversationID] = append(f.messages[conversationID], userMsg, assistantMsg)

	return &models.ChatResponse{UserMessage: userMsg, Message: assistantMsg}, nil
}

func (f *fakeBackend) GetTask(ctx context.Context, taskID string) (*models.TaskResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskPolls++
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, errors.New("task not found")
	}
	return &task, nil
}

func (f *fakeBackend) ListFavorites(ctx context.Context) ([]models.FavoriteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFavoriteCalls++
	return append([]models.FavoriteResponse(nil), f.favorites...), nil
}

func (f *fakeBackend) AddFavorite(ctx context.Context, conversationID, messageID, imageURL string) (*models.FavoriteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.favoriteErr != nil {
		return nil, f.favoriteErr
	}
	fav := models.FavoriteResponse{
		ID: uuid.NewString(), ConversationID: conversationID,
		MessageID: messageID, ImageURL: imageURL,
	}
	f.favorites = append(f.favorites, fav)
	return &fav, nil
}

func (f *fakeBackend) RemoveFavorite(ctx context.Context, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.favoriteErr != nil {
		return f.favoriteErr
	}
	kept := f.favorites[:0]
	for _, fav := range f.favorites {
		if fav.ImageURL != imageURL {
			kept = append(kept, fav)
		}
	}
	f.favorites = kept
	return nil
}

func TestSendConfirmsOptimisticMessageInPlace(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend)
	defer s.Close()
	ctx := context.Background()
	convID := uuid.NewString()

	_, err := s.Messages(ctx, convID)
	require.NoError(t, err)

	tempID, err := s.Send(ctx, convID, "hello", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tempID, tempIDPrefix))

	msgs, err := s.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// The user message keeps its position but carries the server ID now.
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.NotEqual(t, tempID, msgs[0].ID)
	assert.Equal(t, DeliverySent, msgs[0].Delivery)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
}

func TestSendFailureKeepsMessageForRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("network down")
	s := New(backend)
	defer s.Close()
	ctx := context.Background()
	convID := uuid.NewString()

	tempID, err := s.Send(ctx, convID, "hello", "")
	require.Error(t, err)

	msgs, err := s.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, tempID, msgs[0].ID)
	assert.Equal(t, DeliveryFailed, msgs[0].Delivery)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestRetryDeliversFailedMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("network down")
	s := New(backend)
	defer s.Close()
	ctx := context.Background()
	convID := uuid.NewString()

	tempID, err := s.Send(ctx, convID, "hello", "")
	require.Error(t, err)

	backend.mu.Lock()
	backend.sendErr = nil
	backend.mu.Unlock()

	require.NoError(t, s.Retry(ctx, tempID))

	msgs, err := s.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, DeliverySent, msgs[0].Delivery)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)

	// A delivered message cannot be retried again.
	assert.Error(t, s.Retry(ctx, tempID))
}

func TestConversationListIsCachedUntilMutation(t *testing.T) {
	backend := newFakeBackend()
	backend.conversations = []models.ConversationResponse{{ID: uuid.NewString(), Title: "First"}}
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Conversations(ctx)
	require.NoError(t, err)
	_, err = s.Conversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.listConversationCalls)

	_, err = s.NewConversation(ctx, "Second")
	require.NoError(t, err)

	conversations, err := s.Conversations(ctx)
	require.NoError(t, err)
	assert.Len(t, conversations, 2)
	assert.Equal(t, 2, backend.listConversationCalls)
}

func TestAddFavoriteAppearsImmediately(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Favorites(ctx)
	require.NoError(t, err)

	require.NoError(t, s.AddFavorite(ctx, uuid.NewString(), uuid.NewString(), "https://replicate.delivery/a.jpg"))

	favorites, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "https://replicate.delivery/a.jpg", favorites[0].ImageURL)
}

func TestAddFavoriteRollsBackOnError(t *testing.T) {
	backend := newFakeBackend()
	backend.favoriteErr = errors.New("server said no")
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Favorites(ctx)
	require.NoError(t, err)

	require.Error(t, s.AddFavorite(ctx, uuid.NewString(), uuid.NewString(), "https://replicate.delivery/a.jpg"))

	favorites, err := s.Favorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

func TestRemoveFavoriteRestoresOnError(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.AddFavorite(ctx, uuid.NewString(), uuid.NewString(), "https://replicate.delivery/a.jpg"))
	_, err := s.Favorites(ctx)
	require.NoError(t, err)

	backend.mu.Lock()
	backend.favoriteErr = errors.New("server said no")
	backend.mu.Unlock()

	require.Error(t, s.RemoveFavorite(ctx, "https://replicate.delivery/a.jpg"))

	favorites, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
}

func TestSubscribeDeliversChangeEvents(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	events, cancel := s.Subscribe()
	defer cancel()

	_, err := s.NewConversation(ctx, "Chat")
	require.NoError(t, err)

	event := <-events
	assert.Equal(t, EventConversations, event.Type)
}
