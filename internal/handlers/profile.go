package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"imagechat-backend/internal/models"
	"imagechat-backend/internal/supabase"
)

type ProfileHandler struct {
	db *supabase.DatabaseClient
}

func NewProfileHandler(db *supabase.DatabaseClient) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// GetProfile godoc
// @Summary Get profile
// @Tags profile
// @Produce json
// @Success 200 {object} models.ProfileResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	profile, err := h.db.GetProfile(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "profile not found"})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

// UpdateProfile godoc
// @Summary Update profile
// @Description Creates or updates the user's profile. Empty fields keep their current value.
// @Tags profile
// @Accept json
// @Produce json
// @Param request body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.ProfileResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/profile [put]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	profile, err := h.db.UpsertProfile(userID, req.Username, req.AvatarURL)
	if err != nil {
		log.Printf("Failed to upsert profile for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func toProfileResponse(profile *models.Profile) models.ProfileResponse {
	resp := models.ProfileResponse{UserID: profile.UserID.String()}
	if profile.Username.Valid {
		resp.Username = profile.Username.String
	}
	if profile.AvatarURL.Valid {
		resp.AvatarURL = profile.AvatarURL.String
	}
	return resp
}
