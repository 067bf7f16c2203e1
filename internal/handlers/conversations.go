package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"imagechat-backend/internal/models"
	"imagechat-backend/internal/supabase"
)

// defaultConversationTitle is used when a conversation is created without
// one.
const defaultConversationTitle = "New Conversation"

type ConversationHandler struct {
	db       *supabase.DatabaseClient
	realtime *supabase.RealtimeClient
}

func NewConversationHandler(db *supabase.DatabaseClient, realtime *supabase.RealtimeClient) *ConversationHandler {
	return &ConversationHandler{db: db, realtime: realtime}
}

// CreateConversation godoc
// @Summary Create a conversation
// @Description Creates an empty conversation for the authenticated user
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body models.CreateConversationRequest false "Conversation title"
// @Success 201 {object} models.ConversationResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations [post]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateConversationRequest
	// An empty body is fine, the title just defaults.
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" {
		req.Title = defaultConversationTitle
	}

	conv, err := h.db.CreateConversation(userID, req.Title)
	if err != nil {
		log.Printf("Failed to create conversation for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create conversation"})
		return
	}

	c.JSON(http.StatusCreated, toConversationResponse(conv))
}

// ListConversations godoc
// @Summary List conversations
// @Description Lists the authenticated user's conversations, most recently active first
// @Tags conversations
// @Produce json
// @Success 200 {object} models.ConversationListResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversations, err := h.db.ListConversations(userID)
	if err != nil {
		log.Printf("Failed to list conversations for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list conversations"})
		return
	}

	resp := models.ConversationListResponse{Conversations: make([]models.ConversationResponse, 0, len(conversations))}
	for i := range conversations {
		resp.Conversations = append(resp.Conversations, toConversationResponse(&conversations[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// GetConversation godoc
// @Summary Get a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.ConversationResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	conv, err := h.db.GetConversation(conversationID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "conversation not found"})
		return
	}

	c.JSON(http.StatusOK, toConversationResponse(conv))
}

// DeleteConversation godoc
// @Summary Delete a conversation
// @Description Deletes a conversation and all of its messages
// @Tags conversations
// @Param id path string true "Conversation ID"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id} [delete]
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.db.DeleteConversation(conversationID, userID); err != nil {
		log.Printf("Failed to delete conversation %s: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete conversation"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListMessages godoc
// @Summary List messages
// @Description Lists a conversation's messages in chronological order
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.MessageListResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id}/messages [get]
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.db.GetConversation(conversationID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "conversation not found"})
		return
	}

	messages, err := h.db.ListMessages(conversationID)
	if err != nil {
		log.Printf("Failed to list messages for conversation %s: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list messages"})
		return
	}

	resp := models.MessageListResponse{Messages: make([]models.MessageResponse, 0, len(messages))}
	for i := range messages {
		resp.Messages = append(resp.Messages, toMessageResponse(&messages[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// SendMessage godoc
// @Summary Append a message
// @Description Persists a message in a conversation without invoking the assistant
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body models.SendMessageRequest true "Message"
// @Success 201 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Content == "" && req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "message must have content or an image"})
		return
	}

	if _, err := h.db.GetConversation(conversationID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "conversation not found"})
		return
	}

	msg := &models.ChatMessage{
		ConversationID:      conversationID,
		Role:                models.RoleUser,
		Content:             req.Content,
		AdditionalImageURLs: req.AdditionalImageURLs,
	}
	if req.ImageURL != "" {
		msg.ImageURL.String = req.ImageURL
		msg.ImageURL.Valid = true
	}

	created, err := h.db.CreateMessage(msg)
	if err != nil {
		log.Printf("Failed to create message in conversation %s: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create message"})
		return
	}

	if req.ImageURL != "" {
		if err := h.db.SetConversationThumbnail(conversationID, req.ImageURL); err != nil {
			log.Printf("Failed to set thumbnail for conversation %s: %v", conversationID, err)
		}
	}
	if err := h.db.TouchConversation(conversationID); err != nil {
		log.Printf("Failed to touch conversation %s: %v", conversationID, err)
	}
	if h.realtime != nil {
		if err := h.realtime.NotifyNewMessage(conversationID, created); err != nil {
			log.Printf("Failed to broadcast message %s: %v", created.ID, err)
		}
	}

	c.JSON(http.StatusCreated, toMessageResponse(created))
}
