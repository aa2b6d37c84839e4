package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	vectorchromem "github.com/custodia-labs/corpus-cli/internal/adapters/driven/vector/chromem"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/core/services"
)

var (
	askK        int
	askProvider string
)

var askCmd = &cobra.Command{
	Use:   "ask <collection> <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Embeds the question, retrieves the nearest chunks from the
collection's index and asks the configured model to answer using only
those excerpts. When the index holds nothing relevant, corpus says so
instead of guessing.

Examples:
  corpus ask contracts "How long is the lease term?"
  corpus ask contracts --k 3 "When is rent due?"
  corpus ask contracts --provider google "What is the notice period?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askK, "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "answering LLM provider: google, openrouter or ollama")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	collection := args[0]
	question := strings.Join(args[1:], " ")

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder()
	if err != nil {
		return err
	}

	provider := cfg.Answer.Provider
	if askProvider != "" {
		provider = askProvider
	}
	llm, err := buildLLM(provider)
	if err != nil {
		return err
	}

	index, err := vectorchromem.NewPersistent(filepath.Join(dataDir, "index"), collection, embedder.Dimensions())
	if err != nil {
		return err
	}

	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer catalog.Close()

	svc := services.NewAnswerService(embedder, llm, index, catalog, services.AnswerOptions{
		K:              cfg.Retrieval.K,
		MinSimilarity:  cfg.Retrieval.MinSimilarity,
		ContextBudget:  cfg.Retrieval.ContextBudget,
		Temperature:    cfg.Answer.Temperature,
		MaxTokens:      cfg.Answer.MaxTokens,
		RetryAttempts:  cfg.Retry.Attempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		LLMTimeout:     cfg.Retry.LLMTimeout,
		EmbedTimeout:   cfg.Retry.EmbedTimeout,
	})

	answer, err := svc.Ask(context.Background(), collection, question, driving.AskOptions{K: askK})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)

	if answer.Outcome == domain.OutcomeAnswered && len(answer.Sources) > 0 {
		cmd.Println("\nSources:")
		for _, src := range answer.Sources {
			cmd.Printf("  %s (distance %.3f)\n", src.ChunkID, src.Distance)
		}
	}
	return nil
}
