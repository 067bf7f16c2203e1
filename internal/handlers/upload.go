package handlers

import (
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagechat-backend/internal/models"
	"imagechat-backend/internal/supabase"
)

// maxUploadSize caps a single image file at 10 MB.
const maxUploadSize = 10 << 20

type UploadHandler struct {
	storage *supabase.StorageClient
}

func NewUploadHandler(storage *supabase.StorageClient) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// Upload godoc
// @Summary Upload images
// @Description Uploads one or more images to storage and returns their public URLs. Files are uploaded concurrently; failures are reported per file.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Image files"
// @Success 200 {object} models.UploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no files provided"})
		return
	}

	type uploadResult struct {
		url     string
		errInfo *models.UploadErrorInfo
	}

	results := make([]uploadResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file *multipart.FileHeader) {
			defer wg.Done()
			url, errInfo := h.uploadOne(userID, file)
			results[i] = uploadResult{url: url, errInfo: errInfo}
		}(i, file)
	}
	wg.Wait()

	resp := models.UploadResponse{URLs: make([]string, 0, len(files))}
	for _, result := range results {
		if result.errInfo != nil {
			resp.Errors = append(resp.Errors, *result.errInfo)
			continue
		}
		resp.URLs = append(resp.URLs, result.url)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UploadHandler) uploadOne(userID uuid.UUID, file *multipart.FileHeader) (string, *models.UploadErrorInfo) {
	if file.Size > maxUploadSize {
		return "", &models.UploadErrorInfo{
			Filename: file.Filename,
			Error:    "file exceeds 10MB limit",
			Stage:    "validation",
		}
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", &models.UploadErrorInfo{
			Filename: file.Filename,
			Error:    "only image files are accepted",
			Stage:    "validation",
		}
	}

	src, err := file.Open()
	if err != nil {
		return "", &models.UploadErrorInfo{
			Filename: file.Filename,
			Error:    "failed to read file",
			Stage:    "read",
		}
	}
	defer src.Close()

	url, err := h.storage.UploadImage(userID, file.Filename, contentType, src)
	if err != nil {
		log.Printf("Failed to upload %s for user %s: %v", file.Filename, userID, err)
		return "", &models.UploadErrorInfo{
			Filename: file.Filename,
			Error:    "failed to store file",
			Stage:    "storage",
		}
	}

	return url, nil
}
