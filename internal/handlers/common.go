package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagechat-backend/internal/middleware"
	"imagechat-backend/internal/models"
)

// currentUserID pulls the authenticated user out of the request context.
// Writes the 401 itself so callers can just return on !ok.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "not authenticated"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid user id in token"})
		return uuid.Nil, false
	}

	return userID, true
}

// pathUUID parses a UUID path parameter, writing the 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func toConversationResponse(conv *models.Conversation) models.ConversationResponse {
	resp := models.ConversationResponse{
		ID:        conv.ID.String(),
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if conv.ThumbnailURL.Valid {
		resp.ThumbnailURL = conv.ThumbnailURL.String
	}
	return resp
}

func toMessageResponse(msg *models.ChatMessage) models.MessageResponse {
	resp := models.MessageResponse{
		ID:                  msg.ID.String(),
		ConversationID:      msg.ConversationID.String(),
		Role:                msg.Role,
		Content:             msg.Content,
		AdditionalImageURLs: msg.AdditionalImageURLs,
		CreatedAt:           msg.CreatedAt,
	}
	if msg.ImageURL.Valid {
		resp.ImageURL = msg.ImageURL.String
	}
	return resp
}

func toTaskResponse(task *models.ImageTask) models.TaskResponse {
	resp := models.TaskResponse{
		TaskID:    task.ID.String(),
		Status:    task.Status,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if task.ProcessedImageURL.Valid {
		resp.ProcessedImageURL = task.ProcessedImageURL.String
	}
	if task.ErrorMessage.Valid {
		resp.Error = task.ErrorMessage.String
	}
	if task.PredictionID.Valid {
		resp.PredictionID = task.PredictionID.String
	}
	return resp
}

func toFavoriteResponse(fav *models.FavoriteImage) models.FavoriteResponse {
	return models.FavoriteResponse{
		ID:             fav.ID.String(),
		ConversationID: fav.ConversationID.String(),
		MessageID:      fav.MessageID.String(),
		ImageURL:       fav.ImageURL,
		CreatedAt:      fav.CreatedAt,
	}
}
