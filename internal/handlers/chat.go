package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"imagechat-backend/internal/agent"
	"imagechat-backend/internal/models"
	"imagechat-backend/internal/supabase"
)

type ChatHandler struct {
	db    *supabase.DatabaseClient
	agent *agent.Agent
}

func NewChatHandler(db *supabase.DatabaseClient, a *agent.Agent) *ChatHandler {
	return &ChatHandler{db: db, agent: a}
}

// Chat godoc
// @Summary Send a chat turn
// @Description Sends a user message to the assistant. The assistant may dispatch an image generation; either way the response carries exactly one assistant message.
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body models.ChatRequest true "User turn"
// @Success 200 {object} models.ChatResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/conversations/{id}/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserMessage == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "user_message is required"})
		return
	}

	if _, err := h.db.GetConversation(conversationID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "conversation not found"})
		return
	}

	result, err := h.agent.ProcessTurn(c.Request.Context(), userID, conversationID, req.UserMessage, req.ImageURL)
	if err != nil {
		log.Printf("Chat turn failed in conversation %s: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{
		UserMessage:         toMessageResponse(result.UserMessage),
		Message:             toMessageResponse(result.Message),
		GenerationAttempted: result.GenerationAttempted,
	})
}
