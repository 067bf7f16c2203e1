package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagechat-backend/internal/models"
)

// FavoriteStore is the persistence surface the favorite routes need.
// *supabase.DatabaseClient satisfies it.
type FavoriteStore interface {
	GetConversation(conversationID, userID uuid.UUID) (*models.Conversation, error)
	CreateFavorite(fav *models.FavoriteImage) (*models.FavoriteImage, bool, error)
	DeleteFavoriteByURL(userID uuid.UUID, imageURL string) error
	ListFavorites(userID uuid.UUID, conversationID uuid.NullUUID) ([]models.FavoriteImage, error)
}

type FavoriteHandler struct {
	db FavoriteStore
}

func NewFavoriteHandler(db FavoriteStore) *FavoriteHandler {
	return &FavoriteHandler{db: db}
}

// AddFavorite godoc
// @Summary Favorite an image
// @Description Marks an image as a favorite. Favoriting the same URL twice is not an error.
// @Tags favorites
// @Accept json
// @Produce json
// @Param request body models.FavoriteRequest true "Favorite"
// @Success 200 {object} models.FavoriteResponse
// @Success 201 {object} models.FavoriteResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/favorites [post]
func (h *FavoriteHandler) AddFavorite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image_url is required"})
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid conversation_id"})
		return
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid message_id"})
		return
	}

	if _, err := h.db.GetConversation(conversationID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "conversation not found"})
		return
	}

	fav, created, err := h.db.CreateFavorite(&models.FavoriteImage{
		UserID:         userID,
		ConversationID: conversationID,
		MessageID:      messageID,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		log.Printf("Failed to create favorite for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create favorite"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, toFavoriteResponse(fav))
}

// RemoveFavorite godoc
// @Summary Unfavorite an image
// @Description Removes a favorite by image URL. Removing a URL that was never favorited is a no-op.
// @Tags favorites
// @Accept json
// @Param request body models.UnfavoriteRequest true "Image URL"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/favorites [delete]
func (h *FavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.UnfavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image_url is required"})
		return
	}

	if err := h.db.DeleteFavoriteByURL(userID, req.ImageURL); err != nil {
		log.Printf("Failed to delete favorite for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete favorite"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListFavorites godoc
// @Summary List favorites
// @Description Lists the user's favorite images, optionally scoped to one conversation
// @Tags favorites
// @Produce json
// @Param conversation_id query string false "Conversation ID"
// @Success 200 {object} models.FavoriteListResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/favorites [get]
func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var conversationID uuid.NullUUID
	if raw := c.Query("conversation_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid conversation_id"})
			return
		}
		conversationID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	favorites, err := h.db.ListFavorites(userID, conversationID)
	if err != nil {
		log.Printf("Failed to list favorites for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list favorites"})
		return
	}

	resp := models.FavoriteListResponse{Favorites: make([]models.FavoriteResponse, 0, len(favorites))}
	for i := range favorites {
		resp.Favorites = append(resp.Favorites, toFavoriteResponse(&favorites[i]))
	}

	c.JSON(http.StatusOK, resp)
}
