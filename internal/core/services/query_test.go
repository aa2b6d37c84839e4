package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
)

// queryFixture wires an answer service around fakes and a seeded index.
type queryFixture struct {
	svc      *AnswerService
	llm      *fakeLLM
	embedder *fakeEmbedder
	index    *fakeIndex
	catalog  *memCatalog
}

func newQueryFixture(t *testing.T, opts AnswerOptions) *queryFixture {
	t.Helper()

	f := &queryFixture{
		llm: &fakeLLM{},
		embedder: &fakeEmbedder{
			dimensions: 3,
			// Deterministic directions keyed by topic words.
			vectorFor: func(text string) []float32 {
				switch {
				case strings.Contains(text, "lease"):
					return []float32{1, 0, 0}
				case strings.Contains(text, "rent"):
					return []float32{0.9, 0.1, 0}
				default:
					return []float32{0, 0, 1}
				}
			},
		},
		index:   newFakeIndex(3),
		catalog: newMemCatalog(),
	}

	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Millisecond
	}

	f.svc = NewAnswerService(f.embedder, f.llm, f.index, f.catalog, opts)
	return f
}

func (f *queryFixture) seed(t *testing.T, chunkID, docID, content string, vec []float32) {
	t.Helper()
	require.NoError(t, f.index.Upsert(context.Background(), driven.IndexedEntry{
		ChunkID: chunkID,
		Vector:  vec,
		Content: content,
		Metadata: map[string]string{
			"document_id": docID,
			"model":       "fake-embed",
		},
	}))
}

func TestAnswerService_Ask_EmptyIndex(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{})

	answer, err := f.svc.Ask(context.Background(), "contracts", "What is the lease term?", driving.AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeInsufficientContext, answer.Outcome)
	assert.Equal(t, InsufficientContextReply, answer.Text)
	assert.Zero(t, f.llm.callCount())
	assert.Zero(t, f.embedder.calls)
}

func TestAnswerService_Ask_AnswersFromContext(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{K: 2})
	f.seed(t, "lease-2024#0000", "lease-2024", "The lease term is two years.", []float32{1, 0, 0})
	f.seed(t, "lease-2024#0001", "lease-2024", "Rent is due monthly.", []float32{0.9, 0.1, 0})
	f.seed(t, "manual#0000", "manual", "Press the power button to start.", []float32{0, 0, 1})

	f.llm.reply = func([]driven.ChatMessage) string {
		return "The lease term is two years. [source: lease-2024]"
	}

	answer, err := f.svc.Ask(context.Background(), "contracts", "How long is the lease?", driving.AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeAnswered, answer.Outcome)
	assert.Contains(t, answer.Text, "two years")

	// Closest chunks only, in ascending distance order.
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "lease-2024#0000", answer.Sources[0].ChunkID)
	assert.Equal(t, "lease-2024#0001", answer.Sources[1].ChunkID)

	// The model saw only the retrieved excerpts, tagged with sources.
	require.Equal(t, 1, f.llm.callCount())
	userMsg := lastContent(f.llm.calls[0])
	assert.Contains(t, userMsg, "[source: lease-2024]")
	assert.Contains(t, userMsg, "The lease term is two years.")
	assert.NotContains(t, userMsg, "power button")
	assert.Equal(t, "system", f.llm.calls[0][0].Role)
}

func TestAnswerService_Ask_MinSimilarityFiltersAll(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{MinSimilarity: 0.9})
	f.seed(t, "manual#0000", "manual", "Press the power button.", []float32{0, 0, 1})

	answer, err := f.svc.Ask(context.Background(), "contracts", "How long is the lease?", driving.AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeInsufficientContext, answer.Outcome)
	assert.Zero(t, f.llm.callCount())
}

func TestAnswerService_Ask_ModelMismatch(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{})
	f.seed(t, "a#0000", "a", "content", []float32{1, 0, 0})
	require.NoError(t, f.catalog.SaveCollection(context.Background(), driven.CollectionInfo{
		Name:           "contracts",
		EmbeddingModel: "other-model",
		Dimensions:     3,
	}))

	_, err := f.svc.Ask(context.Background(), "contracts", "lease question", driving.AskOptions{})
	assert.ErrorIs(t, err, domain.ErrModelMismatch)
	assert.Zero(t, f.llm.callCount())
}

func TestAnswerService_Ask_KOverride(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{K: 5})
	f.seed(t, "a#0000", "a", "first", []float32{1, 0, 0})
	f.seed(t, "a#0001", "a", "second", []float32{0.9, 0.1, 0})
	f.seed(t, "a#0002", "a", "third", []float32{0.8, 0.2, 0})

	answer, err := f.svc.Ask(context.Background(), "contracts", "lease", driving.AskOptions{K: 1})
	require.NoError(t, err)

	assert.Len(t, answer.Sources, 1)
}

func TestAnswerService_Ask_ModelDeclinesToAnswer(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{})
	f.seed(t, "a#0000", "a", "Unrelated content.", []float32{1, 0, 0})

	f.llm.reply = func([]driven.ChatMessage) string {
		return InsufficientContextReply
	}

	answer, err := f.svc.Ask(context.Background(), "contracts", "lease question", driving.AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeInsufficientContext, answer.Outcome)
}

func TestAnswerService_Ask_ContextBudgetDropsFarChunks(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{K: 3, ContextBudget: 80})
	f.seed(t, "a#0000", "a", strings.Repeat("near ", 8), []float32{1, 0, 0})
	f.seed(t, "a#0001", "a", strings.Repeat("far ", 8), []float32{0.9, 0.1, 0})

	answer, err := f.svc.Ask(context.Background(), "contracts", "lease", driving.AskOptions{})
	require.NoError(t, err)

	// The nearer chunk survives the budget cut.
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "a#0000", answer.Sources[0].ChunkID)
}

func TestAnswerService_Ask_EmptyQuestion(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{})

	_, err := f.svc.Ask(context.Background(), "contracts", "   ", driving.AskOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnswerService_Ask_RetriesEmbedding(t *testing.T) {
	f := newQueryFixture(t, AnswerOptions{RetryAttempts: 3})
	f.seed(t, "a#0000", "a", "The lease term is two years.", []float32{1, 0, 0})

	// First embed call fails transiently via a wrapping embedder.
	calls := 0
	inner := f.embedder
	f.svc.embedder = &flakyEmbedder{inner: inner, failFirst: 1, calls: &calls}

	answer, err := f.svc.Ask(context.Background(), "contracts", "lease", driving.AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAnswered, answer.Outcome)
	assert.Equal(t, 2, calls)
}

// flakyEmbedder fails its first calls with a transient error.
type flakyEmbedder struct {
	inner     driven.EmbeddingService
	failFirst int
	calls     *int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	*f.calls++
	if *f.calls <= f.failFirst {
		return nil, domain.ErrProviderUnavailable
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f.inner.EmbedBatch(ctx, texts)
}

func (f *flakyEmbedder) Dimensions() int { return f.inner.Dimensions() }

func (f *flakyEmbedder) ModelName() string { return f.inner.ModelName() }

func (f *flakyEmbedder) Ping(ctx context.Context) error { return f.inner.Ping(ctx) }

func (f *flakyEmbedder) Close() error { return f.inner.Close() }
