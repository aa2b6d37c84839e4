package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.Answerer = (*AnswerService)(nil)

// AnswerOptions configures retrieval and answering behaviour.
type AnswerOptions struct {
	// K is the default number of chunks retrieved per question.
	K int

	// MinSimilarity discards hits whose cosine similarity falls below
	// this threshold. Zero disables the filter.
	MinSimilarity float64

	// ContextBudget caps total context characters. Zero disables the cap.
	ContextBudget int

	// Temperature and MaxTokens for the answering call.
	Temperature float64
	MaxTokens   int

	// Retry settings for provider calls.
	RetryAttempts  int
	InitialBackoff time.Duration
	LLMTimeout     time.Duration
	EmbedTimeout   time.Duration
}

// AnswerService answers questions from indexed chunks. The question is
// embedded, nearest chunks are retrieved and the answering model is
// constrained to those excerpts.
type AnswerService struct {
	embedder driven.EmbeddingService
	llm      driven.LLMService
	index    driven.VectorIndex
	catalog  driven.Catalog
	opts     AnswerOptions

	llmPolicy   *callPolicy
	embedPolicy *callPolicy
}

// NewAnswerService creates an answer service.
func NewAnswerService(
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	index driven.VectorIndex,
	catalog driven.Catalog,
	opts AnswerOptions,
) *AnswerService {
	if opts.K <= 0 {
		opts.K = 5
	}

	return &AnswerService{
		embedder:    embedder,
		llm:         llm,
		index:       index,
		catalog:     catalog,
		opts:        opts,
		llmPolicy:   newCallPolicy(opts.RetryAttempts, opts.InitialBackoff, opts.LLMTimeout, 0),
		embedPolicy: newCallPolicy(opts.RetryAttempts, opts.InitialBackoff, opts.EmbedTimeout, 0),
	}
}

// Ask answers the question from the collection's indexed chunks. An
// empty index or no sufficiently similar chunk short-circuits to an
// insufficient-context answer without calling the model.
func (s *AnswerService) Ask(ctx context.Context, collection, question string, opts driving.AskOptions) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	k := opts.K
	if k <= 0 {
		k = s.opts.K
	}

	// The index is only usable with the model that populated it.
	info, err := s.catalog.GetCollection(ctx, collection)
	if err == nil && info.EmbeddingModel != s.embedder.ModelName() {
		return nil, fmt.Errorf("%w: collection %s was embedded with %s, configured model is %s",
			domain.ErrModelMismatch, collection, info.EmbeddingModel, s.embedder.ModelName())
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting index entries: %w", err)
	}
	if count == 0 {
		return &domain.Answer{
			Outcome: domain.OutcomeInsufficientContext,
			Text:    InsufficientContextReply,
		}, nil
	}

	var queryVec []float32
	err = s.embedPolicy.do(ctx, func(ctx context.Context) error {
		var embErr error
		queryVec, embErr = s.embedder.Embed(ctx, question)
		return embErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := s.index.Query(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	retrieved := make([]domain.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		similarity := 1 - float64(hit.Distance)
		if s.opts.MinSimilarity > 0 && similarity < s.opts.MinSimilarity {
			continue
		}
		retrieved = append(retrieved, domain.RetrievedChunk{
			ChunkID:    hit.Entry.ChunkID,
			DocumentID: hit.Entry.Metadata["document_id"],
			Content:    hit.Entry.Content,
			Distance:   hit.Distance,
		})
	}
	if len(retrieved) == 0 {
		return &domain.Answer{
			Outcome: domain.OutcomeInsufficientContext,
			Text:    InsufficientContextReply,
		}, nil
	}

	excerpts, kept := buildContext(retrieved, s.opts.ContextBudget)
	logger.Debug("ask: %d of %d retrieved chunks in context", len(kept), len(retrieved))

	userMsg := fmt.Sprintf("Document excerpts:\n\n%s\n\nQuestion: %s", excerpts, question)

	var reply string
	err = s.llmPolicy.do(ctx, func(ctx context.Context) error {
		var chatErr error
		reply, chatErr = s.llm.Chat(ctx, []driven.ChatMessage{
			{Role: "system", Content: answerPrompt},
			{Role: "user", Content: userMsg},
		}, driven.ChatOptions{
			Temperature: s.opts.Temperature,
			MaxTokens:   s.opts.MaxTokens,
		})
		return chatErr
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	reply = strings.TrimSpace(reply)
	outcome := domain.OutcomeAnswered
	if reply == InsufficientContextReply {
		outcome = domain.OutcomeInsufficientContext
	}

	return &domain.Answer{
		Outcome: outcome,
		Text:    reply,
		Sources: kept,
	}, nil
}
