package supabase

import (
	"fmt"

	supa "github.com/supabase-community/supabase-go"

	"imagechat-backend/internal/config"
)

// Client bundles the project's Supabase surfaces: the REST API client, the
// Postgres connection and the storage bucket client.
type Client struct {
	API     *supa.Client
	DB      *DatabaseClient
	Storage *StorageClient
}

func NewClient(cfg *config.Config) (*Client, error) {
	api, err := supa.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	db, err := NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)

	return &Client{
		API:     api,
		DB:      db,
		Storage: store,
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}
