// Package agent runs one conversational turn: persist the user's message,
// ask the model what to do, dispatch at most one image generation and always
// answer with exactly one assistant message.
package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"imagechat-backend/internal/llm"
	"imagechat-backend/internal/models"
	"imagechat-backend/internal/tasks"
)

// imageHistoryDepth bounds how far back the source image lookup scans.
const imageHistoryDepth = 5

// ConversationStore is the persistence surface the agent needs.
// *supabase.DatabaseClient satisfies it.
type ConversationStore interface {
	CreateMessage(msg *models.ChatMessage) (*models.ChatMessage, error)
	ListMessages(conversationID uuid.UUID) ([]models.ChatMessage, error)
	RecentImageURLs(conversationID uuid.UUID, limit int) ([]string, error)
	SetConversationThumbnail(conversationID uuid.UUID, thumbnailURL string) error
	TouchConversation(conversationID uuid.UUID) error
}

// Chatter is the model behind the agent.
type Chatter interface {
	Chat(ctx context.Context, history []models.ChatMessage, userMessage, imageURL string) (*llm.Reply, error)
}

// Generator runs image generations. *tasks.Orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, userID uuid.UUID, req *tasks.Request) (*tasks.Result, error)
}

// Notifier pushes new messages to connected clients. May be nil.
type Notifier interface {
	NotifyNewMessage(conversationID uuid.UUID, msg *models.ChatMessage) error
}

// TurnResult is the outcome of one turn: the persisted user message, the
// single assistant message and whether an image generation was attempted on
// the way.
type TurnResult struct {
	UserMessage         *models.ChatMessage
	Message             *models.ChatMessage
	GenerationAttempted bool
}

type Agent struct {
	store     ConversationStore
	chatter   Chatter
	generator Generator
	notifier  Notifier
}

func NewAgent(store ConversationStore, chatter Chatter, generator Generator, notifier Notifier) *Agent {
	return &Agent{
		store:     store,
		chatter:   chatter,
		generator: generator,
		notifier:  notifier,
	}
}

// ProcessTurn handles one user turn end to end. Whatever happens after the
// user message is persisted, the turn produces exactly one assistant
// message: generation failures degrade into an apologetic text reply rather
// than an error.
func (a *Agent) ProcessTurn(ctx context.Context, userID, conversationID uuid.UUID, userMessage, imageURL string) (*TurnResult, error) {
	history, err := a.store.ListMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	userMsg, err := a.store.CreateMessage(&models.ChatMessage{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        userMessage,
		ImageURL:       nullString(imageURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	a.broadcast(conversationID, userMsg)

	if imageURL != "" {
		if err := a.store.SetConversationThumbnail(conversationID, imageURL); err != nil {
			log.Printf("Failed to set thumbnail for conversation %s: %v", conversationID, err)
		}
	}

	result, err := a.respond(ctx, userID, conversationID, history, userMessage, imageURL)
	if err != nil {
		return nil, err
	}
	result.UserMessage = userMsg

	return result, nil
}

// respond produces the turn's single assistant message.
func (a *Agent) respond(ctx context.Context, userID, conversationID uuid.UUID, history []models.ChatMessage, userMessage, imageURL string) (*TurnResult, error) {
	reply, err := a.chatter.Chat(ctx, history, userMessage, imageURL)
	if err != nil {
		// The model is down. Still answer the turn.
		return a.finishTurn(conversationID, &models.ChatMessage{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
			Content:        "Sorry, I ran into a problem handling that. Please try again in a moment.",
		}, false)
	}

	call, ok := firstImageToolCall(reply)
	if !ok {
		content := reply.Content
		if content == "" {
			content = "I'm not sure what to do with that. Could you rephrase?"
		}
		return a.finishTurn(conversationID, &models.ChatMessage{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
			Content:        content,
		}, false)
	}

	return a.runGeneration(ctx, userID, conversationID, call)
}

// firstImageToolCall returns the first image_processing call with usable
// arguments. Later tool calls in the same reply are ignored.
func firstImageToolCall(reply *llm.Reply) (*llm.ToolCall, bool) {
	for _, raw := range reply.ToolCalls {
		if raw.Name != "image_processing" {
			continue
		}
		var call llm.ToolCall
		if err := json.Unmarshal([]byte(raw.Arguments), &call); err != nil {
			log.Printf("Ignoring malformed tool arguments: %v", err)
			return nil, false
		}
		if call.Prompt == "" {
			return nil, false
		}
		return &call, true
	}
	return nil, false
}

func (a *Agent) runGeneration(ctx context.Context, userID, conversationID uuid.UUID, call *llm.ToolCall) (*TurnResult, error) {
	recent, err := a.store.RecentImageURLs(conversationID, imageHistoryDepth)
	if err != nil {
		log.Printf("Failed to load recent images for conversation %s: %v", conversationID, err)
	}
	sourceURL := ResolveSourceImage(recent, call.ImageURL)

	result, genErr := a.generator.Generate(ctx, userID, &tasks.Request{
		Prompt:         call.Prompt,
		SourceImageURL: sourceURL,
		ConversationID: uuid.NullUUID{UUID: conversationID, Valid: true},
	})
	if genErr != nil {
		return a.finishTurn(conversationID, &models.ChatMessage{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
			Content:        degradedReply(genErr),
		}, true)
	}

	if err := a.store.SetConversationThumbnail(conversationID, result.OutputImageURL); err != nil {
		log.Printf("Failed to set thumbnail for conversation %s: %v", conversationID, err)
	}

	return a.finishTurn(conversationID, &models.ChatMessage{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        "Here's your image!",
		ImageURL:       nullString(result.OutputImageURL),
	}, true)
}

// degradedReply turns a generation error into user-facing assistant text.
func degradedReply(err error) string {
	switch err.(type) {
	case *tasks.InsufficientCreditError:
		return "You're out of credits, so I couldn't generate that image. Top up and try again!"
	case *tasks.ValidationError:
		return "I couldn't generate that image: " + err.Error()
	default:
		return "Sorry, the image generation didn't work this time. Please try again."
	}
}

// finishTurn persists the assistant message and bumps the conversation.
func (a *Agent) finishTurn(conversationID uuid.UUID, msg *models.ChatMessage, attempted bool) (*TurnResult, error) {
	created, err := a.store.CreateMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if err := a.store.TouchConversation(conversationID); err != nil {
		log.Printf("Failed to touch conversation %s: %v", conversationID, err)
	}
	a.broadcast(conversationID, created)

	return &TurnResult{Message: created, GenerationAttempted: attempted}, nil
}

func (a *Agent) broadcast(conversationID uuid.UUID, msg *models.ChatMessage) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.NotifyNewMessage(conversationID, msg); err != nil {
		log.Printf("Failed to broadcast message %s: %v", msg.ID, err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
