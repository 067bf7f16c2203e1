package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// OpenAI (chat agent)
	OpenAIAPIKey string
	OpenAIModel  string

	// Replicate (image generation)
	ReplicateAPIToken string
	ReplicateModel    string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Hosts trusted as generation input sources
	AllowedImageDomains []string

	// Admin
	AdminAPIToken string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	// .env is optional; deployments set real environment variables
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		ReplicateAPIToken: getEnv("REPLICATE_API_TOKEN", ""),
		ReplicateModel:    getEnv("REPLICATE_MODEL", "black-forest-labs/flux-kontext-pro"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AllowedImageDomains: splitList(getEnv("ALLOWED_IMAGE_DOMAINS",
			"supabase.co,amazonaws.com,cloudflare.com,googleapis.com,googleusercontent.com,replicate.delivery")),

		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.ReplicateAPIToken == "" {
		return fmt.Errorf("REPLICATE_API_TOKEN is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.AllowedImageDomains) == 0 {
		return fmt.Errorf("ALLOWED_IMAGE_DOMAINS must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
