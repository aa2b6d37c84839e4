package driven

import "context"

// LLMService provides text completion for the cleansing and answering
// stages. Providers are polymorphic behind this interface and selected by
// configuration at call time.
//
// Implementations:
//   - Google (Gemini)
//   - OpenRouter (OpenAI-compatible)
//   - Ollama (local models)
type LLMService interface {
	// Chat sends a system instruction plus conversation messages and
	// returns the completion text.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures completion behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
