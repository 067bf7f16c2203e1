package main

import (
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"imagechat-backend/internal/agent"
	"imagechat-backend/internal/config"
	"imagechat-backend/internal/credits"
	"imagechat-backend/internal/database"
	"imagechat-backend/internal/handlers"
	"imagechat-backend/internal/llm"
	"imagechat-backend/internal/middleware"
	"imagechat-backend/internal/replicate"
	"imagechat-backend/internal/supabase"
	"imagechat-backend/internal/tasks"
)

// @title Image Chat API
// @version 1.0
// @description Conversational image editing backend: chat with an assistant that edits and generates images, with per-generation credits.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect for migrations: %v", err)
	}
	if err := migrator.Run(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	migrator.Close()

	sb, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create supabase client: %v", err)
	}
	defer sb.Close()

	realtime := supabase.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabasePublishableKey)

	provider, err := replicate.NewClient(cfg.ReplicateAPIToken, cfg.ReplicateModel)
	if err != nil {
		log.Fatalf("Failed to create replicate client: %v", err)
	}
	chatModel := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	gate := credits.NewGate(sb.DB)
	orchestrator := tasks.NewOrchestrator(sb.DB, gate, provider, realtime, cfg.AllowedImageDomains)
	chatAgent := agent.NewAgent(sb.DB, chatModel, orchestrator, realtime)

	conversationHandler := handlers.NewConversationHandler(sb.DB, realtime)
	chatHandler := handlers.NewChatHandler(sb.DB, chatAgent)
	taskHandler := handlers.NewTaskHandler(orchestrator)
	favoriteHandler := handlers.NewFavoriteHandler(sb.DB)
	creditHandler := handlers.NewCreditHandler(gate, cfg.AdminAPIToken)
	uploadHandler := handlers.NewUploadHandler(sb.Storage)
	profileHandler := handlers.NewProfileHandler(sb.DB)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.GET("/health", handlers.Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.SupabaseJWTSecret))
	{
		api.POST("/conversations", conversationHandler.CreateConversation)
		api.GET("/conversations", conversationHandler.ListConversations)
		api.GET("/conversations/:id", conversationHandler.GetConversation)
		api.DELETE("/conversations/:id", conversationHandler.DeleteConversation)
		api.GET("/conversations/:id/messages", conversationHandler.ListMessages)
		api.POST("/conversations/:id/messages", conversationHandler.SendMessage)
		api.POST("/conversations/:id/chat", chatHandler.Chat)

		api.POST("/generate", taskHandler.Generate)
		api.GET("/tasks/:task_id", taskHandler.GetTask)

		api.POST("/upload", uploadHandler.Upload)

		api.POST("/favorites", favoriteHandler.AddFavorite)
		api.DELETE("/favorites", favoriteHandler.RemoveFavorite)
		api.GET("/favorites", favoriteHandler.ListFavorites)

		api.GET("/credits/balance", creditHandler.GetBalance)
		api.GET("/credits/transactions", creditHandler.ListTransactions)
		api.POST("/credits/topup", creditHandler.TopUp)

		api.GET("/profile", profileHandler.GetProfile)
		api.PUT("/profile", profileHandler.UpdateProfile)
	}

	log.Printf("Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
