// Package openai provides an embedding service adapter for the OpenAI
// embeddings API and compatible endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel = "text-embedding-3-small"
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API base URL. Useful for Azure OpenAI or
	// other OpenAI-compatible embedding endpoints.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Dimensions overrides the default dimension for the model.
	// Only applicable to text-embedding-3-* models.
	Dimensions int
}

// EmbeddingService generates embeddings using the OpenAI API.
type EmbeddingService struct {
	client     *goopenai.Client
	model      string
	dimensions int
	truncated  bool
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions[cfg.Model]
	}
	if dims == 0 {
		return nil, fmt.Errorf("%w: openai: unknown model %q requires explicit dimensions", domain.ErrInvalidConfig, cfg.Model)
	}

	// Explicit dimensions are only forwarded when they shrink a
	// text-embedding-3-* model; legacy models reject the parameter.
	truncated := cfg.Dimensions != 0 && cfg.Dimensions != modelDimensions[cfg.Model]

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &EmbeddingService{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: dims,
		truncated:  truncated,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(s.model),
	}
	if s.truncated {
		req.Dimensions = s.dimensions
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, mapAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai: got %d embeddings for %d inputs",
			domain.ErrMalformedResponse, len(resp.Data), len(texts))
	}

	// Responses carry an index; order by it rather than trusting
	// slice position.
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai: embedding index %d out of range", domain.ErrMalformedResponse, item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates credentials and connectivity with a minimal request.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.client.ListModels(ctx)
	if err != nil {
		return mapAPIError(err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// mapAPIError translates go-openai errors onto the error taxonomy.
func mapAPIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: openai: %s", domain.ErrRateLimited, apiErr.Message)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: openai: %s", domain.ErrAuthFailed, apiErr.Message)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: openai: %s", domain.ErrProviderUnavailable, apiErr.Message)
		}
		return fmt.Errorf("openai: %s", apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: openai", domain.ErrTimeout)
	}
	return fmt.Errorf("%w: openai: %v", domain.ErrProviderUnavailable, err)
}
