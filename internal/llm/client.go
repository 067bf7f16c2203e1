// Package llm wraps the OpenAI chat completion API for the conversational
// image-editing agent.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"imagechat-backend/internal/models"
)

const systemPrompt = `You are a friendly assistant inside a photo editing app. Users chat with you to edit and generate images.

When the user asks for an image edit or a new image, call the image_processing tool with a concise English prompt describing the desired result. If the request refers to an image already in the conversation, pass its URL as image_url.

When the user is just chatting, reply conversationally and do not call any tool. Keep replies short and warm.`

// ToolCall is one image_processing invocation proposed by the model.
type ToolCall struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
}

// Reply is the model's answer to one turn: assistant text plus any proposed
// tool calls, in the order the model emitted them.
type Reply struct {
	Content   string
	ToolCalls []RawToolCall
}

// RawToolCall carries the unparsed tool arguments. Argument JSON comes from
// the model and can be malformed, so parsing is left to the caller.
type RawToolCall struct {
	Name      string
	Arguments string
}

type Client struct {
	api   *openai.Client
	model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

var imageProcessingTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "image_processing",
		Description: "Edit an existing image or generate a new one from a text prompt.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "English description of the image to produce.",
				},
				"image_url": map[string]interface{}{
					"type":        "string",
					"description": "URL of the source image to edit, if any.",
				},
			},
			"required": []string{"prompt"},
		},
	},
}

// Chat sends the conversation history plus the new user turn and returns the
// model's reply.
func (c *Client) Chat(ctx context.Context, history []models.ChatMessage, userMessage, imageURL string) (*Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		content := msg.Content
		if msg.ImageURL.Valid {
			content = fmt.Sprintf("%s\n[image: %s]", content, msg.ImageURL.String)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: content,
		})
	}

	userContent := userMessage
	if imageURL != "" {
		userContent = fmt.Sprintf("%s\n[image: %s]", userMessage, imageURL)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userContent,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       []openai.Tool{imageProcessingTool},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	reply := &Reply{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, RawToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return reply, nil
}
