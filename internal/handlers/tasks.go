package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagechat-backend/internal/models"
	"imagechat-backend/internal/tasks"
)

type TaskHandler struct {
	orchestrator *tasks.Orchestrator
}

func NewTaskHandler(orchestrator *tasks.Orchestrator) *TaskHandler {
	return &TaskHandler{orchestrator: orchestrator}
}

// Generate godoc
// @Summary Generate an image
// @Description Runs one image generation synchronously. One credit is debited on success only.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body models.GenerateRequest true "Generation request"
// @Success 200 {object} models.TaskResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/generate [post]
func (h *TaskHandler) Generate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	taskReq := &tasks.Request{
		Prompt:         req.Prompt,
		SourceImageURL: req.OriginalImageURL,
	}
	if req.ConversationID != "" {
		convID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid conversation_id"})
			return
		}
		taskReq.ConversationID = uuid.NullUUID{UUID: convID, Valid: true}
	}

	result, err := h.orchestrator.Generate(c.Request.Context(), userID, taskReq)
	if err != nil {
		h.writeGenerateError(c, err)
		return
	}

	task, err := h.orchestrator.GetTask(result.TaskID, userID)
	if err != nil {
		log.Printf("Failed to load completed task %s: %v", result.TaskID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load task"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) writeGenerateError(c *gin.Context, err error) {
	var verr *tasks.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: verr.Error()})
		return
	}

	var cerr *tasks.InsufficientCreditError
	if errors.As(err, &cerr) {
		balance := cerr.Balance
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Error:   "insufficient credits",
			Message: "top up to generate more images",
			Balance: &balance,
		})
		return
	}

	var perr *tasks.ProviderError
	if errors.As(err, &perr) {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "image generation failed",
			Message: perr.TaskID.String(),
		})
		return
	}

	log.Printf("Generation failed: %v", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "image generation failed"})
}

// GetTask godoc
// @Summary Get task status
// @Description Returns the current state of an image generation task
// @Tags tasks
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} models.TaskResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathUUID(c, "task_id")
	if !ok {
		return
	}

	task, err := h.orchestrator.GetTask(taskID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "task not found"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}
