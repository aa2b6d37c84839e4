// Package openrouter provides an LLM service adapter for OpenRouter's
// OpenAI-compatible chat completion API.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "meta-llama/llama-3-8b-instruct"
)

// Config holds configuration for the OpenRouter LLM service.
type Config struct {
	// APIKey is the OpenRouter API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://openrouter.ai/api/v1).
	BaseURL string

	// Model is the model slug, e.g. "meta-llama/llama-3-8b-instruct" or
	// "anthropic/claude-3.5-sonnet".
	Model string
}

// LLMService provides chat completions using OpenRouter.
type LLMService struct {
	client *goopenai.Client
	model  string
}

// NewLLMService creates a new OpenRouter LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openrouter: API key is required", domain.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &LLMService{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Chat sends the conversation to OpenRouter and returns the completion text.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	chatMessages := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    chatMessages,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openrouter: response has no choices", domain.ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the model slug being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates credentials and connectivity by listing models.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return mapAPIError(err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

// mapAPIError translates go-openai errors onto the error taxonomy.
func mapAPIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: openrouter: %s", domain.ErrRateLimited, apiErr.Message)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: openrouter: %s", domain.ErrAuthFailed, apiErr.Message)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: openrouter: %s", domain.ErrProviderUnavailable, apiErr.Message)
		}
		return fmt.Errorf("openrouter: %s", apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: openrouter", domain.ErrTimeout)
	}
	return fmt.Errorf("%w: openrouter: %v", domain.ErrProviderUnavailable, err)
}
