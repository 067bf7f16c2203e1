// Package tasks orchestrates image generation: request validation, the
// credit gate, the provider call and the task row lifecycle.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"imagechat-backend/internal/credits"
	"imagechat-backend/internal/models"
)

// MaxPromptLength is the longest prompt accepted, in characters.
const MaxPromptLength = 500

// ValidationError marks a request rejected before any work started.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientCreditError carries the balance that was too low to generate.
type InsufficientCreditError struct {
	Balance int
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credits: balance is %d", e.Balance)
}

// ProviderError wraps a failure from the image provider after the task row
// was already created.
type ProviderError struct {
	TaskID uuid.UUID
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("image generation failed for task %s: %v", e.TaskID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Provider produces an output image for a prompt, optionally editing a
// source image. Returns the output URL and the provider's job ID.
type Provider interface {
	Generate(ctx context.Context, prompt, sourceImageURL string) (string, string, error)
}

// TaskStore persists image task rows. *supabase.DatabaseClient satisfies it.
type TaskStore interface {
	CreateImageTask(task *models.ImageTask) (*models.ImageTask, error)
	GetImageTask(taskID, userID uuid.UUID) (*models.ImageTask, error)
	CompleteImageTask(taskID uuid.UUID, processedImageURL, predictionID string) error
	FailImageTask(taskID uuid.UUID, errorMsg, predictionID string) error
}

// Gate answers whether a user can afford a generation and spends the credit
// afterwards.
type Gate interface {
	Check(userID uuid.UUID) (int, error)
	Debit(userID uuid.UUID, referenceID string) (*models.UserCredit, error)
}

// Notifier pushes task state changes to connected clients. May be nil.
type Notifier interface {
	NotifyTaskUpdate(task *models.ImageTask) error
}

// Request is one generation request after HTTP decoding.
type Request struct {
	Prompt         string
	SourceImageURL string
	ConversationID uuid.NullUUID
}

// Result is the terminal state of a generation.
type Result struct {
	TaskID         uuid.UUID
	Status         string
	OutputImageURL string
	PredictionID   string
}

type Orchestrator struct {
	store          TaskStore
	gate           Gate
	provider       Provider
	notifier       Notifier
	allowedDomains []string
}

func NewOrchestrator(store TaskStore, gate Gate, provider Provider, notifier Notifier, allowedDomains []string) *Orchestrator {
	return &Orchestrator{
		store:          store,
		gate:           gate,
		provider:       provider,
		notifier:       notifier,
		allowedDomains: allowedDomains,
	}
}

// Validate rejects bad prompts and untrusted source URLs before any credit
// check or provider call.
func (o *Orchestrator) Validate(req *Request) error {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(req.Prompt) > MaxPromptLength {
		return &ValidationError{
			Field:  "prompt",
			Reason: fmt.Sprintf("must be at most %d characters", MaxPromptLength),
		}
	}

	if req.SourceImageURL != "" {
		if err := o.validateImageURL(req.SourceImageURL); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) validateImageURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &ValidationError{Field: "original_image_url", Reason: "must be an absolute http(s) URL"}
	}

	host := strings.ToLower(parsed.Hostname())
	for _, domain := range o.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}

	return &ValidationError{
		Field:  "original_image_url",
		Reason: fmt.Sprintf("host %q is not an allowed image domain", host),
	}
}

// Generate runs one generation end to end. The credit is checked before the
// provider is called and debited only after it succeeds, so a provider
// failure never costs the user anything. The task row records the terminal
// state either way.
func (o *Orchestrator) Generate(ctx context.Context, userID uuid.UUID, req *Request) (*Result, error) {
	if err := o.Validate(req); err != nil {
		return nil, err
	}

	balance, err := o.gate.Check(userID)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return nil, &InsufficientCreditError{Balance: balance}
		}
		return nil, fmt.Errorf("credit check failed: %w", err)
	}

	task, err := o.store.CreateImageTask(&models.ImageTask{
		UserID:           userID,
		ConversationID:   req.ConversationID,
		OriginalImageURL: nullString(req.SourceImageURL),
		Prompt:           req.Prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	outputURL, predictionID, genErr := o.provider.Generate(ctx, req.Prompt, req.SourceImageURL)
	if genErr != nil {
		o.finishFailed(task, genErr, predictionID)
		return nil, &ProviderError{TaskID: task.ID, Err: genErr}
	}
	if outputURL == "" {
		// A provider returning neither output nor error is still a failure.
		noOutput := fmt.Errorf("provider returned no output image")
		o.finishFailed(task, noOutput, predictionID)
		return nil, &ProviderError{TaskID: task.ID, Err: noOutput}
	}

	if err := o.store.CompleteImageTask(task.ID, outputURL, predictionID); err != nil {
		// The image exists but we could not record it. Fail the task so the
		// client is not left polling a row that will never complete.
		o.finishFailed(task, fmt.Errorf("failed to record result: %w", err), predictionID)
		return nil, &ProviderError{TaskID: task.ID, Err: err}
	}

	// Debit after success. A failed debit is logged and swallowed: the user
	// already has their image and failing the task now would be worse.
	if _, err := o.gate.Debit(userID, task.ID.String()); err != nil {
		log.Printf("Failed to debit credit for task %s (user %s): %v", task.ID, userID, err)
	}

	o.notify(task.ID, userID)

	return &Result{
		TaskID:         task.ID,
		Status:         models.TaskStatusCompleted,
		OutputImageURL: outputURL,
		PredictionID:   predictionID,
	}, nil
}

// GetTask returns a task scoped to its owner, for status polling.
func (o *Orchestrator) GetTask(taskID, userID uuid.UUID) (*models.ImageTask, error) {
	return o.store.GetImageTask(taskID, userID)
}

func (o *Orchestrator) finishFailed(task *models.ImageTask, cause error, predictionID string) {
	if err := o.store.FailImageTask(task.ID, cause.Error(), predictionID); err != nil {
		log.Printf("Failed to mark task %s failed: %v", task.ID, err)
	}
	o.notify(task.ID, task.UserID)
}

func (o *Orchestrator) notify(taskID, userID uuid.UUID) {
	if o.notifier == nil {
		return
	}
	task, err := o.store.GetImageTask(taskID, userID)
	if err != nil {
		log.Printf("Failed to load task %s for notification: %v", taskID, err)
		return
	}
	if err := o.notifier.NotifyTaskUpdate(task); err != nil {
		log.Printf("Failed to broadcast task %s update: %v", taskID, err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
