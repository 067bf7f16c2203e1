package supabase

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client  *storage.Client
	baseURL string
	bucket  string
}

func NewStorageClient(supabaseURL, apiKey, bucket string) *StorageClient {
	return &StorageClient{
		client:  storage.NewClient(supabaseURL+"/storage/v1", apiKey, nil),
		baseURL: supabaseURL,
		bucket:  bucket,
	}
}

// UploadImage stores the file under the user's prefix and returns the public
// URL. Object keys are time plus a random suffix so concurrent uploads from
// one user never collide.
func (s *StorageClient) UploadImage(userID uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}

	objectPath := fmt.Sprintf("%s/%d-%s%s", userID, time.Now().UnixMilli(), uuid.NewString()[:8], ext)

	upsert := false
	_, err := s.client.UploadFile(s.bucket, objectPath, body, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	return s.PublicURL(objectPath), nil
}

func (s *StorageClient) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}
