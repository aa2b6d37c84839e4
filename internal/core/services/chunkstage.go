package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// runChunk segments each cleansed text into overlapping chunks and
// stores them as a JSON artifact per document.
func (s *PipelineService) runChunk(ctx context.Context, collection string, force bool) (*domain.StageReport, error) {
	docIDs, err := s.artifacts.Completed(ctx, collection, domain.StageCleanse)
	if err != nil {
		return nil, fmt.Errorf("listing cleanse artifacts: %w", err)
	}
	logger.Section(domain.StageChunk, "%d cleansed documents", len(docIDs))

	return s.runDocs(ctx, collection, domain.StageChunk, docIDs, func(ctx context.Context, docID string) (domain.StageState, error) {
		return s.chunkOne(ctx, collection, docID, force)
	})
}

func (s *PipelineService) chunkOne(ctx context.Context, collection, docID string, force bool) (domain.StageState, error) {
	payload, _, err := s.artifacts.Get(ctx, collection, domain.StageCleanse, docID)
	if err != nil {
		return domain.StateFailed, err
	}
	inputHash := hashBytes(payload)

	if !force {
		meta, err := s.artifacts.Meta(ctx, collection, domain.StageChunk, docID)
		if err == nil && meta.ContentHash == inputHash {
			return domain.StateSkipped, nil
		}
	}

	chunks := s.chunker.Split(docID, string(payload))
	if len(chunks) == 0 {
		return domain.StateFailed, fmt.Errorf("%w: document has no content to chunk", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		return domain.StateFailed, fmt.Errorf("encoding chunks: %w", err)
	}

	err = s.artifacts.Put(ctx, collection, domain.StageChunk, docID, data, driven.ArtifactMeta{
		ContentHash: inputHash,
	})
	if err != nil {
		return domain.StateFailed, fmt.Errorf("storing chunk artifact: %w", err)
	}
	return domain.StateDone, nil
}
