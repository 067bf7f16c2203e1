// Package replicate wraps the Replicate prediction API for image editing
// with the FLUX Kontext model family.
package replicate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	replicate "github.com/replicate/replicate-go"
)

type Client struct {
	api   *replicate.Client
	owner string
	name  string
}

// NewClient builds a client for a model given as "owner/name".
func NewClient(apiToken, model string) (*Client, error) {
	owner, name, ok := strings.Cut(model, "/")
	if !ok {
		return nil, fmt.Errorf("model must be owner/name, got %q", model)
	}

	api, err := replicate.NewClient(replicate.WithToken(apiToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create replicate client: %w", err)
	}

	return &Client{api: api, owner: owner, name: name}, nil
}

// Generate runs one prediction to completion and returns the output image
// URL and the prediction ID. When sourceImageURL is set the model edits that
// image and keeps its aspect ratio; otherwise it generates from the prompt
// alone.
func (c *Client) Generate(ctx context.Context, prompt, sourceImageURL string) (string, string, error) {
	input := replicate.PredictionInput{
		"prompt":              prompt,
		"guidance_scale":      3.5,
		"num_inference_steps": 28,
		"output_format":       "jpg",
		"safety_tolerance":    2,
	}
	if sourceImageURL != "" {
		input["input_image"] = sourceImageURL
		input["aspect_ratio"] = "match_input_image"
	}

	var prediction *replicate.Prediction
	err := RetryWithBackoff(func() error {
		var createErr error
		prediction, createErr = c.api.CreatePredictionWithModel(ctx, c.owner, c.name, input, nil, false)
		return createErr
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create prediction: %w", err)
	}

	if err := c.api.Wait(ctx, prediction); err != nil {
		return "", prediction.ID, fmt.Errorf("failed waiting for prediction %s: %w", prediction.ID, err)
	}

	if prediction.Status != replicate.Succeeded {
		return "", prediction.ID, fmt.Errorf("prediction %s ended %s: %v", prediction.ID, prediction.Status, prediction.Error)
	}

	outputURL, err := extractOutputURL(prediction.Output)
	if err != nil {
		return "", prediction.ID, fmt.Errorf("prediction %s: %w", prediction.ID, err)
	}

	return outputURL, prediction.ID, nil
}

// extractOutputURL handles the two shapes Replicate models return: a bare
// URL string or an array of URL strings.
func extractOutputURL(output interface{}) (string, error) {
	switch v := output.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case []interface{}:
		if len(v) > 0 {
			if url, ok := v[0].(string); ok && url != "" {
				return url, nil
			}
		}
	}
	return "", fmt.Errorf("prediction succeeded but returned no output image")
}

// RetryWithBackoff retries transient failures with a short exponential
// backoff before giving up.
func RetryWithBackoff(fn func() error) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= len(backoffs) {
			break
		}
		log.Printf("Replicate request failed (attempt %d): %v, retrying in %s", attempt+1, err, backoffs[attempt])
		time.Sleep(backoffs[attempt])
	}

	return err
}
