// Package config loads and validates the pipeline configuration from a
// TOML file, with environment variables supplying credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// Provider names accepted in the llm and embedding sections.
const (
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
)

// Config is the full pipeline configuration.
type Config struct {
	Pipeline  PipelineConfig  `toml:"pipeline"`
	OCR       OCRConfig       `toml:"ocr"`
	Cleanse   CleanseConfig   `toml:"cleanse"`
	Chunk     ChunkConfig     `toml:"chunk"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Answer    AnswerConfig    `toml:"answer"`
	LLM       LLMConfig       `toml:"llm"`
	Retry     RetryConfig     `toml:"retry"`
}

// PipelineConfig controls stage execution.
type PipelineConfig struct {
	// InputDir is where source documents are discovered.
	InputDir string `toml:"input_dir"`

	// DataDir is the root for artifacts, the vector store and the
	// catalog (default: ~/.corpus).
	DataDir string `toml:"data_dir"`

	// Workers bounds per-document concurrency within a stage.
	Workers int `toml:"workers"`
}

// OCRConfig controls text extraction.
type OCRConfig struct {
	// TesseractPath and PdftoppmPath override binary discovery on PATH.
	TesseractPath string `toml:"tesseract_path"`
	PdftoppmPath  string `toml:"pdftoppm_path"`

	// Languages is the tesseract language spec, e.g. "eng" or "ind+eng".
	Languages string `toml:"languages"`

	// DPI is the PDF rasterisation resolution.
	DPI int `toml:"dpi"`
}

// CleanseConfig controls the LLM cleansing stage.
type CleanseConfig struct {
	// Provider selects the LLM backend: google, openrouter or ollama.
	Provider string `toml:"provider"`

	// MaxInputChars splits larger inputs into segments before cleansing.
	MaxInputChars int `toml:"max_input_chars"`

	// Temperature for cleansing calls. Kept at zero so the model
	// corrects rather than rewrites.
	Temperature float64 `toml:"temperature"`
}

// ChunkConfig controls text segmentation.
type ChunkConfig struct {
	MaxSize int `toml:"max_size"`
	Overlap int `toml:"overlap"`
}

// EmbeddingConfig controls the embedding stage.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: ollama or openai.
	Provider string `toml:"provider"`

	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`

	// BatchSize bounds how many chunks go into one provider call.
	BatchSize int `toml:"batch_size"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`
}

// RetrievalConfig controls nearest-neighbour search at query time.
type RetrievalConfig struct {
	// K is the number of chunks retrieved per question.
	K int `toml:"k"`

	// MinSimilarity discards hits whose cosine similarity falls below
	// this threshold. Zero disables the filter.
	MinSimilarity float64 `toml:"min_similarity"`

	// ContextBudget caps the total characters of retrieved context
	// passed to the answering model. Zero disables the cap.
	ContextBudget int `toml:"context_budget"`
}

// AnswerConfig controls the answering stage.
type AnswerConfig struct {
	// Provider selects the LLM backend: google, openrouter or ollama.
	Provider string `toml:"provider"`

	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// LLMConfig holds per-provider settings. API keys come from the
// environment, never from the file.
type LLMConfig struct {
	Google     GoogleConfig     `toml:"google"`
	OpenRouter OpenRouterConfig `toml:"openrouter"`
	Ollama     OllamaConfig     `toml:"ollama"`
}

// GoogleConfig configures the Gemini provider.
type GoogleConfig struct {
	Model string `toml:"model"`

	// APIKey is populated from GOOGLE_API_KEY.
	APIKey string `toml:"-"`
}

// OpenRouterConfig configures the OpenRouter provider.
type OpenRouterConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`

	// APIKey is populated from OPENROUTER_API_KEY.
	APIKey string `toml:"-"`
}

// OllamaConfig configures the local Ollama provider.
type OllamaConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// RetryConfig controls transient failure handling for provider calls.
type RetryConfig struct {
	// Attempts is the total number of tries per call.
	Attempts int `toml:"attempts"`

	// InitialBackoff is the first retry delay; subsequent delays grow
	// exponentially.
	InitialBackoff time.Duration `toml:"initial_backoff"`

	// LLMTimeout bounds each LLM call.
	LLMTimeout time.Duration `toml:"llm_timeout"`

	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration `toml:"embed_timeout"`

	// RatePerSecond throttles provider calls. Zero disables throttling.
	RatePerSecond float64 `toml:"rate_per_second"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			InputDir: "documents",
			Workers:  4,
		},
		OCR: OCRConfig{
			Languages: "eng",
			DPI:       300,
		},
		Cleanse: CleanseConfig{
			Provider:      ProviderOllama,
			MaxInputChars: 12000,
			Temperature:   0,
		},
		Chunk: ChunkConfig{
			MaxSize: 1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderOllama,
			BatchSize: 32,
		},
		Retrieval: RetrievalConfig{
			K: 5,
		},
		Answer: AnswerConfig{
			Provider:    ProviderOllama,
			Temperature: 0.1,
		},
		Retry: RetryConfig{
			Attempts:       3,
			InitialBackoff: 500 * time.Millisecond,
			LLMTimeout:     120 * time.Second,
			EmbedTimeout:   30 * time.Second,
		},
	}
}

// Load reads the TOML file at path, applies defaults for absent fields,
// pulls credentials from the environment and validates the result.
// An empty path loads ~/.corpus/config.toml when it exists, defaults
// otherwise.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".corpus", "config.toml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrInvalidConfig, path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// Defaults only.
		default:
			return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrInvalidConfig, path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv pulls credentials from the environment.
func (c *Config) applyEnv() {
	c.LLM.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	c.LLM.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
}

// OpenAIAPIKey returns the key for OpenAI-compatible embedding calls.
func (c *Config) OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// Validate checks the configuration for fatal errors. It fails fast so
// a bad setup is caught before any stage runs.
func (c *Config) Validate() error {
	if c.Chunk.MaxSize <= 0 {
		return fmt.Errorf("%w: chunk.max_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Chunk.Overlap < 0 {
		return fmt.Errorf("%w: chunk.overlap must not be negative", domain.ErrInvalidConfig)
	}
	if c.Chunk.Overlap >= c.Chunk.MaxSize {
		return fmt.Errorf("%w: chunk.overlap (%d) must be smaller than chunk.max_size (%d)",
			domain.ErrInvalidConfig, c.Chunk.Overlap, c.Chunk.MaxSize)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: pipeline.workers must be positive", domain.ErrInvalidConfig)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding.batch_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("%w: retrieval.k must be positive", domain.ErrInvalidConfig)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("%w: retrieval.min_similarity must be in [0, 1]", domain.ErrInvalidConfig)
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("%w: retry.attempts must be positive", domain.ErrInvalidConfig)
	}

	for section, provider := range map[string]string{
		"cleanse.provider": c.Cleanse.Provider,
		"answer.provider":  c.Answer.Provider,
	} {
		switch provider {
		case ProviderGoogle, ProviderOpenRouter, ProviderOllama:
		default:
			return fmt.Errorf("%w: %s must be one of google, openrouter, ollama (got %q)",
				domain.ErrInvalidConfig, section, provider)
		}
	}

	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: embedding.provider must be one of ollama, openai (got %q)",
			domain.ErrInvalidConfig, c.Embedding.Provider)
	}

	return nil
}

// DataDir returns the configured data directory, defaulting to ~/.corpus.
func (c *Config) DataDir() (string, error) {
	if c.Pipeline.DataDir != "" {
		return c.Pipeline.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".corpus"), nil
}
