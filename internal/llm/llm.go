package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	maxAttempts       = 3
	initialRetryDelay = 2 * time.Second
)

// Error is a normalized upstream failure. Status carries the HTTP code
// the caller should surface (500 when the upstream gave none).
type Error struct {
	Status      int
	Message     string
	RateLimited bool
}

func (e *Error) Error() string { return e.Message }

// IsRateLimit reports whether err is a rate-limit failure from the
// generative backend (HTTP 429 or a message mentioning it).
func IsRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var e *Error
	if errors.As(err, &e) && e.RateLimited {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "429")
}

// Client wraps an OpenAI-compatible generative API client.
type Client struct {
	api   *openai.Client
	model string

	attempts  int
	baseDelay time.Duration
}

// New creates a new generative client against the given OpenAI-compatible
// base URL with a fixed model identifier.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		attempts:  maxAttempts,
		baseDelay: initialRetryDelay,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Generate sends the prompt with the given system instruction and returns
// the raw response text. Rate-limit failures are retried with linear
// backoff (base, 2×base) up to the attempt cap; any other failure returns
// immediately as a normalized *Error.
func (c *Client) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.7,
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", &Error{Status: http.StatusInternalServerError, Message: "backend returned no choices"}
			}
			return resp.Choices[0].Message.Content, nil
		}

		if IsRateLimit(err) && attempt < c.attempts-1 {
			delay := time.Duration(attempt+1) * c.baseDelay
			slog.Warn("rate limited, retrying", "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		return "", normalize(err)
	}
	return "", normalize(lastErr)
}

// normalize converts an upstream failure into *Error, preserving the
// upstream HTTP status when one is available.
func normalize(err error) *Error {
	rateLimited := IsRateLimit(err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return &Error{Status: status, Message: apiErr.Message, RateLimited: rateLimited}
	}

	status := http.StatusInternalServerError
	if rateLimited {
		status = http.StatusTooManyRequests
	}
	return &Error{Status: status, Message: err.Error(), RateLimited: rateLimited}
}
