package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imagechat-backend/internal/models"
)

// Health godoc
// @Summary Health check
// @Description Returns 200 when the service is up
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
