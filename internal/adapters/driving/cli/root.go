// Package cli provides the corpus command line interface.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	artifactfs "github.com/custodia-labs/corpus-cli/internal/adapters/driven/artifact/fs"
	catalogsqlite "github.com/custodia-labs/corpus-cli/internal/adapters/driven/catalog/sqlite"
	embedollama "github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/ollama"
	embedopenai "github.com/custodia-labs/corpus-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/llm/google"
	llmollama "github.com/custodia-labs/corpus-cli/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/llm/openrouter"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/ocr/pdftext"
	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/ocr/tesseract"
	vectorchromem "github.com/custodia-labs/corpus-cli/internal/adapters/driven/vector/chromem"
	"github.com/custodia-labs/corpus-cli/internal/chunker"
	"github.com/custodia-labs/corpus-cli/internal/config"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/services"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Turn scanned documents into an answerable knowledge base",
	Long: `Corpus ingests scanned documents (PDFs and images), extracts and
repairs their text, chunks and embeds it into a local vector index, and
answers questions grounded in the indexed content.

The ingestion pipeline runs in five stages, each resumable on its own:

  extract -> cleanse -> chunk -> embed -> index

Artifacts are persisted per stage, so re-running a stage skips documents
whose inputs have not changed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Credentials may live in a .env next to the working directory.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.corpus/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openCatalog opens the SQLite catalog under the data directory.
func openCatalog() (*catalogsqlite.Catalog, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	return catalogsqlite.NewCatalog(filepath.Join(dataDir, "data"))
}

// buildEmbedder constructs the configured embedding service.
func buildEmbedder() (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderOllama:
		return embedollama.NewEmbeddingService(embedollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    cfg.Retry.EmbedTimeout,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	case config.ProviderOpenAI:
		return embedopenai.NewEmbeddingService(embedopenai.Config{
			APIKey:     cfg.OpenAIAPIKey(),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfig, cfg.Embedding.Provider)
	}
}

// buildLLM constructs an LLM service for the named provider.
func buildLLM(provider string) (driven.LLMService, error) {
	switch provider {
	case config.ProviderGoogle:
		return google.NewLLMService(google.Config{
			APIKey:  cfg.LLM.Google.APIKey,
			Model:   cfg.LLM.Google.Model,
			Timeout: cfg.Retry.LLMTimeout,
		})
	case config.ProviderOpenRouter:
		return openrouter.NewLLMService(openrouter.Config{
			APIKey:  cfg.LLM.OpenRouter.APIKey,
			BaseURL: cfg.LLM.OpenRouter.BaseURL,
			Model:   cfg.LLM.OpenRouter.Model,
		})
	case config.ProviderOllama:
		return llmollama.NewLLMService(llmollama.Config{
			BaseURL: cfg.LLM.Ollama.BaseURL,
			Model:   cfg.LLM.Ollama.Model,
			Timeout: cfg.Retry.LLMTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", domain.ErrInvalidConfig, provider)
	}
}

// pipelineDeps bundles everything a stage run needs, with a cleanup.
type pipelineDeps struct {
	svc     *services.PipelineService
	catalog *catalogsqlite.Catalog
}

func (d *pipelineDeps) close() {
	if d.catalog != nil {
		d.catalog.Close()
	}
}

// buildPipeline wires the full pipeline for one collection.
func buildPipeline(collection string) (*pipelineDeps, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder()
	if err != nil {
		return nil, err
	}

	cleanser, err := buildLLM(cfg.Cleanse.Provider)
	if err != nil {
		return nil, err
	}

	dims := embedder.Dimensions()
	index, err := vectorchromem.NewPersistent(filepath.Join(dataDir, "index"), collection, dims)
	if err != nil {
		return nil, err
	}

	artifacts, err := artifactfs.NewStore(filepath.Join(dataDir, "artifacts"))
	if err != nil {
		return nil, err
	}

	catalog, err := openCatalog()
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(cfg.Chunk.MaxSize, cfg.Chunk.Overlap)
	if err != nil {
		catalog.Close()
		return nil, err
	}

	engines := []driven.OCREngine{
		pdftext.New(),
		tesseract.New(tesseract.Config{
			TesseractPath: cfg.OCR.TesseractPath,
			PdftoppmPath:  cfg.OCR.PdftoppmPath,
			Languages:     cfg.OCR.Languages,
			DPI:           cfg.OCR.DPI,
		}),
	}

	svc := services.NewPipelineService(engines, cleanser, embedder, index, artifacts, catalog, ch, services.PipelineOptions{
		InputDir:             cfg.Pipeline.InputDir,
		Workers:              cfg.Pipeline.Workers,
		CleanseMaxInputChars: cfg.Cleanse.MaxInputChars,
		CleanseTemperature:   cfg.Cleanse.Temperature,
		EmbedBatchSize:       cfg.Embedding.BatchSize,
		RetryAttempts:        cfg.Retry.Attempts,
		InitialBackoff:       cfg.Retry.InitialBackoff,
		LLMTimeout:           cfg.Retry.LLMTimeout,
		EmbedTimeout:         cfg.Retry.EmbedTimeout,
		RatePerSecond:        cfg.Retry.RatePerSecond,
	})

	return &pipelineDeps{svc: svc, catalog: catalog}, nil
}
