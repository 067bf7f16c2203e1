// Package store keeps client-facing conversation state in sync with the
// backend API. Sends are optimistic: the message appears immediately with a
// temporary ID and is replaced in place once the server confirms it, or kept
// in a failed state so it can be retried.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"imagechat-backend/internal/models"
)

// DeliveryState tracks a locally sent message's round trip.
type DeliveryState string

const (
	DeliveryPending DeliveryState = "pending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// tempIDPrefix marks message IDs minted locally before server confirmation.
const tempIDPrefix = "temp-"

const (
	listCacheTTL     = 30 * time.Second
	conversationsKey = "conversations"
	favoritesKey     = "favorites"
)

// Message is a chat message plus its local delivery state. Messages loaded
// from the server are always DeliverySent.
type Message struct {
	models.MessageResponse
	Delivery DeliveryState
}

// Event tells subscribers which slice of state changed.
type Event struct {
	Type           string
	ConversationID string
	TaskID         string
}

const (
	EventConversations = "conversations"
	EventMessages      = "messages"
	EventFavorites     = "favorites"
	EventTask          = "task"
)

// Backend is the API surface the store syncs against.
type Backend interface {
	ListConversations(ctx context.Context) ([]models.ConversationResponse, error)
	CreateConversation(ctx context.Context, title string) (*models.ConversationResponse, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	ListMessages(ctx context.Context, conversationID string) ([]models.MessageResponse, error)
	SendChat(ctx context.Context, conversationID, content, imageURL string) (*models.ChatResponse, error)
	GetTask(ctx context.Context, taskID string) (*models.TaskResponse, error)
	ListFavorites(ctx context.Context) ([]models.FavoriteResponse, error)
	AddFavorite(ctx context.Context, conversationID, messageID, imageURL string) (*models.FavoriteResponse, error)
	RemoveFavorite(ctx context.Context, imageURL string) error
}

type pendingSend struct {
	conversationID string
	content        string
	imageURL       string
}

type Store struct {
	backend Backend

	mu       sync.Mutex
	messages map[string][]Message
	loaded   map[string]bool
	pending  map[string]pendingSend
	lists    *cache.Cache

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int

	watchMu sync.Mutex
	watches map[string]chan struct{}
	closed  bool
	wg      sync.WaitGroup

	// Zero values fall back to the package defaults.
	pollInterval time.Duration
	pollLimit    int
}

func New(backend Backend) *Store {
	return &Store{
		backend:     backend,
		messages:    make(map[string][]Message),
		loaded:      make(map[string]bool),
		pending:     make(map[string]pendingSend),
		lists:       cache.New(listCacheTTL, time.Minute),
		subscribers: make(map[int]chan Event),
		watches:     make(map[string]chan struct{}),
	}
}

// Subscribe returns a channel of change events and a cancel function. Slow
// consumers drop events rather than blocking the store.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, 16)
	s.subscribers[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (s *Store) notify(event Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// --- Conversations ---

// Conversations lists the user's conversations, served from a short-lived
// cache between mutations.
func (s *Store) Conversations(ctx context.Context) ([]models.ConversationResponse, error) {
	if cached, ok := s.lists.Get(conversationsKey); ok {
		return cached.([]models.ConversationResponse), nil
	}

	conversations, err := s.backend.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	s.lists.Set(conversationsKey, conversations, cache.DefaultExpiration)
	return conversations, nil
}

func (s *Store) NewConversation(ctx context.Context, title string) (*models.ConversationResponse, error) {
	conv, err := s.backend.CreateConversation(ctx, title)
	if err != nil {
		return nil, err
	}
	s.lists.Delete(conversationsKey)
	s.notify(Event{Type: EventConversations})
	return conv, nil
}

func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := s.backend.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.messages, conversationID)
	delete(s.loaded, conversationID)
	s.mu.Unlock()

	s.lists.Delete(conversationsKey)
	s.notify(Event{Type: EventConversations})
	return nil
}

// --- Messages ---

// Messages returns the conversation's messages in order. The first call
// loads from the backend; afterwards the local copy is authoritative so
// pending and failed sends stay visible.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	if s.loaded[conversationID] {
		out := append([]Message(nil), s.messages[conversationID]...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	fetched, err := s.backend.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded[conversationID] {
		confirmed := make([]Message, 0, len(fetched))
		for _, msg := range fetched {
			confirmed = append(confirmed, Message{MessageResponse: msg, Delivery: DeliverySent})
		}
		// Unconfirmed local sends stay at the tail.
		s.messages[conversationID] = append(confirmed, s.messages[conversationID]...)
		s.loaded[conversationID] = true
	}
	return append([]Message(nil), s.messages[conversationID]...), nil
}

// Send posts a chat turn optimistically. The returned ID identifies the
// local user message; on failure the message stays in the list as
// DeliveryFailed and can be handed to Retry.
func (s *Store) Send(ctx context.Context, conversationID, content, imageURL string) (string, error) {
	tempID := tempIDPrefix + uuid.NewString()

	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], Message{
		MessageResponse: models.MessageResponse{
			ID:             tempID,
			ConversationID: conversationID,
			Role:           models.RoleUser,
			Content:        content,
			ImageURL:       imageURL,
			CreatedAt:      time.Now(),
		},
		Delivery: DeliveryPending,
	})
	s.pending[tempID] = pendingSend{conversationID: conversationID, content: content, imageURL: imageURL}
	s.mu.Unlock()
	s.notify(Event{Type: EventMessages, ConversationID: conversationID})

	return tempID, s.deliver(ctx, conversationID, tempID)
}

// Retry resends a failed message in place.
func (s *Store) Retry(ctx context.Context, messageID string) error {
	s.mu.Lock()
	body, ok := s.pending[messageID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no failed message %s to retry", messageID)
	}
	s.setDelivery(body.conversationID, messageID, DeliveryPending)
	s.mu.Unlock()
	s.notify(Event{Type: EventMessages, ConversationID: body.conversationID})

	return s.deliver(ctx, body.conversationID, messageID)
}

func (s *Store) deliver(ctx context.Context, conversationID, tempID string) error {
	s.mu.Lock()
	body := s.pending[tempID]
	s.mu.Unlock()

	resp, err := s.backend.SendChat(ctx, conversationID, body.content, body.imageURL)

	s.mu.Lock()
	if err != nil {
		s.setDelivery(conversationID, tempID, DeliveryFailed)
		s.mu.Unlock()
		s.notify(Event{Type: EventMessages, ConversationID: conversationID})
		return err
	}

	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == tempID {
			msgs[i] = Message{MessageResponse: resp.UserMessage, Delivery: DeliverySent}
			break
		}
	}
	s.messages[conversationID] = append(msgs, Message{
		MessageResponse: resp.Message,
		Delivery:        DeliverySent,
	})
	delete(s.pending, tempID)
	s.mu.Unlock()

	// The turn may have changed titles or thumbnails server side.
	s.lists.Delete(conversationsKey)
	s.notify(Event{Type: EventMessages, ConversationID: conversationID})
	return nil
}

// setDelivery must be called with s.mu held.
func (s *Store) setDelivery(conversationID, messageID string, state DeliveryState) {
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Delivery = state
			return
		}
	}
}

// --- Favorites ---

func (s *Store) Favorites(ctx context.Context) ([]models.FavoriteResponse, error) {
	if cached, ok := s.lists.Get(favoritesKey); ok {
		return cached.([]models.FavoriteResponse), nil
	}

	favorites, err := s.backend.ListFavorites(ctx)
	if err != nil {
		return nil, err
	}
	s.lists.Set(favoritesKey, favorites, cache.DefaultExpiration)
	return favorites, nil
}

// AddFavorite applies the favorite locally first and rolls the cached list
// back if the server rejects it.
func (s *Store) AddFavorite(ctx context.Context, conversationID, messageID, imageURL string) error {
	if cached, ok := s.lists.Get(favoritesKey); ok {
		optimistic := append([]models.FavoriteResponse{{
			ID:             tempIDPrefix + uuid.NewString(),
			ConversationID: conversationID,
			MessageID:      messageID,
			ImageURL:       imageURL,
			CreatedAt:      time.Now(),
		}}, cached.([]models.FavoriteResponse)...)
		s.lists.Set(favoritesKey, optimistic, cache.DefaultExpiration)
		s.notify(Event{Type: EventFavorites})
	}

	_, err := s.backend.AddFavorite(ctx, conversationID, messageID, imageURL)
	// Refetch either way: on success to pick up the server row, on failure
	// to roll the optimistic entry back.
	s.lists.Delete(favoritesKey)
	s.notify(Event{Type: EventFavorites})
	return err
}

// RemoveFavorite drops the favorite locally first and restores it if the
// server call fails.
func (s *Store) RemoveFavorite(ctx context.Context, imageURL string) error {
	if cached, ok := s.lists.Get(favoritesKey); ok {
		list := cached.([]models.FavoriteResponse)
		trimmed := make([]models.FavoriteResponse, 0, len(list))
		for _, fav := range list {
			if fav.ImageURL != imageURL {
				trimmed = append(trimmed, fav)
			}
		}
		s.lists.Set(favoritesKey, trimmed, cache.DefaultExpiration)
		s.notify(Event{Type: EventFavorites})
	}

	err := s.backend.RemoveFavorite(ctx, imageURL)
	if err != nil {
		s.lists.Delete(favoritesKey)
		s.notify(Event{Type: EventFavorites})
	}
	return err
}
