package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagechat-backend/internal/handlers"
	"imagechat-backend/internal/models"
)

type memFavoriteStore struct {
	conversations map[uuid.UUID]uuid.UUID
	favorites     []models.FavoriteImage
}

func newMemFavoriteStore() *memFavoriteStore {
	return &memFavoriteStore{conversations: make(map[uuid.UUID]uuid.UUID)}
}

func (m *memFavoriteStore) addConversation(conversationID, userID uuid.UUID) {
	m.conversations[conversationID] = userID
}

func (m *memFavoriteStore) GetConversation(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	owner, ok := m.conversations[conversationID]
	if !ok || owner != userID {
		return nil, errors.New("conversation not found")
	}
	return &models.Conversation{ID: conversationID, UserID: userID}, nil
}

func (m *memFavoriteStore) CreateFavorite(fav *models.FavoriteImage) (*models.FavoriteImage, bool, error) {
	for i := range m.favorites {
		if m.favorites[i].UserID == fav.UserID && m.favorites[i].ImageURL == fav.ImageURL {
			return &m.favorites[i], false, nil
		}
	}
	created := *fav
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	m.favorites = append(m.favorites, created)
	return &created, true, nil
}

func (m *memFavoriteStore) DeleteFavoriteByURL(userID uuid.UUID, imageURL string) error {
	kept := m.favorites[:0]
	for _, fav := range m.favorites {
		if fav.UserID != userID || fav.ImageURL != imageURL {
			kept = append(kept, fav)
		}
	}
	m.favorites = kept
	return nil
}

func (m *memFavoriteStore) ListFavorites(userID uuid.UUID, conversationID uuid.NullUUID) ([]models.FavoriteImage, error) {
	var out []models.FavoriteImage
	for _, fav := range m.favorites {
		if fav.UserID != userID {
			continue
		}
		if conversationID.Valid && fav.ConversationID != conversationID.UUID {
			continue
		}
		out = append(out, fav)
	}
	return out, nil
}

func favoriteRouter(userID uuid.UUID, store *memFavoriteStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewFavoriteHandler(store)

	router := gin.New()
	api := router.Group("/api/v1", authAs(userID))
	api.POST("/favorites", handler.AddFavorite)
	api.DELETE("/favorites", handler.RemoveFavorite)
	api.GET("/favorites", handler.ListFavorites)
	return router
}

func TestAddFavoriteEndpoint(t *testing.T) {
	userID := uuid.New()
	store := newMemFavoriteStore()
	convID := uuid.New()
	store.addConversation(convID, userID)
	router := favoriteRouter(userID, store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/favorites", models.FavoriteRequest{
		ConversationID: convID.String(),
		MessageID:      uuid.NewString(),
		ImageURL:       "https://replicate.delivery/a.jpg",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp models.FavoriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://replicate.delivery/a.jpg", resp.ImageURL)
}

func TestAddFavoriteTwiceKeepsOneRow(t *testing.T) {
	userID := uuid.New()
	store := newMemFavoriteStore()
	convID := uuid.New()
	store.addConversation(convID, userID)
	router := favoriteRouter(userID, store)

	req := models.FavoriteRequest{
		ConversationID: convID.String(),
		MessageID:      uuid.NewString(),
		ImageURL:       "https://replicate.delivery/a.jpg",
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/favorites", req)
	require.Equal(t, http.StatusCreated, w.Code)
	var first models.FavoriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// The duplicate is already-satisfied: same row back, not an error.
	w = doJSON(t, router, http.MethodPost, "/api/v1/favorites", req)
	assert.Equal(t, http.StatusOK, w.Code)
	var second models.FavoriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)

	require.Len(t, store.favorites, 1)
}

func TestRemoveFavoriteOfUnknownURLIsNoOp(t *testing.T) {
	userID := uuid.New()
	store := newMemFavoriteStore()
	router := favoriteRouter(userID, store)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/favorites", models.UnfavoriteRequest{
		ImageURL: "https://replicate.delivery/never-favorited.jpg",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRemoveFavoriteDeletesByURL(t *testing.T) {
	userID := uuid.New()
	store := newMemFavoriteStore()
	convID := uuid.New()
	store.addConversation(convID, userID)
	router := favoriteRouter(userID, store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/favorites", models.FavoriteRequest{
		ConversationID: convID.String(),
		MessageID:      uuid.NewString(),
		ImageURL:       "https://replicate.delivery/a.jpg",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/favorites", models.UnfavoriteRequest{
		ImageURL: "https://replicate.delivery/a.jpg",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.favorites)
}

func TestAddFavoriteRejectsForeignConversation(t *testing.T) {
	userID := uuid.New()
	store := newMemFavoriteStore()
	convID := uuid.New()
	store.addConversation(convID, uuid.New())
	router := favoriteRouter(userID, store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/favorites", models.FavoriteRequest{
		ConversationID: convID.String(),
		MessageID:      uuid.NewString(),
		ImageURL:       "https://replicate.delivery/a.jpg",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, store.favorites)
}

func TestListFavoritesScopedToConversation(t *testing.T) {
	userID := uuid.New()
	store := newMemFavoriteStore()
	convA := uuid.New()
	convB := uuid.New()
	store.addConversation(convA, userID)
	store.addConversation(convB, userID)
	router := favoriteRouter(userID, store)

	for i, conv := range []uuid.UUID{convA, convB} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/favorites", models.FavoriteRequest{
			ConversationID: conv.String(),
			MessageID:      uuid.NewString(),
			ImageURL:       "https://replicate.delivery/" + string(rune('a'+i)) + ".jpg",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/favorites?conversation_id="+convA.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.FavoriteListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Favorites, 1)
	assert.Equal(t, convA.String(), resp.Favorites[0].ConversationID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/favorites", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Favorites, 2)
}
