package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/corpus-cli/internal/chunker"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driving"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// Ensure PipelineService implements the interface.
var _ driving.Pipeline = (*PipelineService)(nil)

// PipelineOptions configures stage behaviour.
type PipelineOptions struct {
	// InputDir is where source documents are discovered.
	InputDir string

	// Workers bounds per-document concurrency within a stage.
	Workers int

	// CleanseMaxInputChars splits larger extracts into segments before
	// cleansing. Zero means no segmentation.
	CleanseMaxInputChars int

	// CleanseTemperature for cleansing calls.
	CleanseTemperature float64

	// EmbedBatchSize bounds how many chunks go into one embedding call.
	EmbedBatchSize int

	// Retry settings for provider calls.
	RetryAttempts  int
	InitialBackoff time.Duration
	LLMTimeout     time.Duration
	EmbedTimeout   time.Duration
	RatePerSecond  float64
}

// PipelineService runs the ingestion stages: extract, cleanse, chunk,
// embed, index. Each stage reads the previous stage's artifacts and
// persists its own, so any stage can be re-run independently.
type PipelineService struct {
	engines   []driven.OCREngine
	cleanser  driven.LLMService
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	artifacts driven.ArtifactStore
	catalog   driven.Catalog
	chunker   *chunker.Chunker
	opts      PipelineOptions

	llmPolicy   *callPolicy
	embedPolicy *callPolicy
}

// NewPipelineService creates a pipeline service. Engines are tried in
// order for each document until one succeeds.
func NewPipelineService(
	engines []driven.OCREngine,
	cleanser driven.LLMService,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	artifacts driven.ArtifactStore,
	catalog driven.Catalog,
	ch *chunker.Chunker,
	opts PipelineOptions,
) *PipelineService {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}

	return &PipelineService{
		engines:     engines,
		cleanser:    cleanser,
		embedder:    embedder,
		index:       index,
		artifacts:   artifacts,
		catalog:     catalog,
		chunker:     ch,
		opts:        opts,
		llmPolicy:   newCallPolicy(opts.RetryAttempts, opts.InitialBackoff, opts.LLMTimeout, opts.RatePerSecond),
		embedPolicy: newCallPolicy(opts.RetryAttempts, opts.InitialBackoff, opts.EmbedTimeout, opts.RatePerSecond),
	}
}

// RunStage executes one stage over the collection. Per-document failures
// are isolated and reported; only configuration and index-level errors
// abort the stage.
func (s *PipelineService) RunStage(ctx context.Context, collection string, stage domain.Stage, force bool) (*domain.StageReport, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrInvalidInput)
	}

	started := time.Now().UTC()

	var (
		report *domain.StageReport
		err    error
	)
	switch stage {
	case domain.StageExtract:
		report, err = s.runExtract(ctx, collection, force)
	case domain.StageCleanse:
		report, err = s.runCleanse(ctx, collection, force)
	case domain.StageChunk:
		report, err = s.runChunk(ctx, collection, force)
	case domain.StageEmbed:
		report, err = s.runEmbed(ctx, collection, force)
	case domain.StageIndex:
		report, err = s.runIndex(ctx, collection, force)
	default:
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidInput, stage)
	}
	if err != nil {
		return nil, err
	}

	if saveErr := s.catalog.SaveRun(ctx, driven.RunRecord{
		ID:         uuid.NewString(),
		Collection: collection,
		Stage:      stage,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Succeeded:  report.Succeeded,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
	}); saveErr != nil {
		logger.Warn("failed to record run: %v", saveErr)
	}

	return report, nil
}

// Run executes all stages in order. Documents that fail one stage are
// simply absent from later stages; the run continues with the rest.
func (s *PipelineService) Run(ctx context.Context, collection string, force bool) ([]domain.StageReport, error) {
	reports := make([]domain.StageReport, 0, len(domain.BatchStages()))
	for _, stage := range domain.BatchStages() {
		report, err := s.RunStage(ctx, collection, stage, force)
		if err != nil {
			return reports, fmt.Errorf("stage %s: %w", stage, err)
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// docResult is one document's outcome within a stage.
type docResult struct {
	state domain.StageState
	err   error
}

// runDocs processes documents concurrently with per-document failure
// isolation, records catalog status and assembles the stage report.
// process returns the document's terminal state, or an error for a
// recorded failure. A fatal error from the group aborts the stage.
func (s *PipelineService) runDocs(
	ctx context.Context,
	collection string,
	stage domain.Stage,
	docIDs []string,
	process func(ctx context.Context, docID string) (domain.StageState, error),
) (*domain.StageReport, error) {
	report := &domain.StageReport{Collection: collection, Stage: stage}

	var mu sync.Mutex
	results := make(map[string]docResult, len(docIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, docID := range docIDs {
		docID := docID
		g.Go(func() error {
			state, err := process(gctx, docID)
			if err != nil {
				if fatal(err) {
					return err
				}
				state = domain.StateFailed
				logger.Warn("%s: %s failed: %v", stage, docID, err)
			}

			mu.Lock()
			results[docID] = docResult{state: state, err: err}
			mu.Unlock()

			status := driven.DocumentStatus{
				Collection: collection,
				DocumentID: docID,
				Stage:      stage,
				State:      state,
			}
			if err != nil {
				status.Error = err.Error()
			}
			if catErr := s.catalog.SetDocumentStatus(gctx, status); catErr != nil {
				logger.Warn("failed to record status for %s: %v", docID, catErr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic report order.
	sorted := make([]string, 0, len(results))
	for id := range results {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	for _, id := range sorted {
		res := results[id]
		switch res.state {
		case domain.StateDone:
			report.Succeeded++
		case domain.StateSkipped:
			report.Skipped++
		case domain.StateFailed:
			report.Failed++
			report.Failures = append(report.Failures, domain.DocumentFailure{
				DocumentID: id,
				Reason:     res.err.Error(),
			})
		}
	}
	return report, nil
}

// fatal reports whether the error must abort the whole stage rather
// than fail a single document.
func fatal(err error) bool {
	return errors.Is(err, domain.ErrInvalidConfig) ||
		errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, domain.ErrAuthFailed) ||
		errors.Is(err, context.Canceled)
}

// hashBytes returns the hex SHA-256 of b.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
