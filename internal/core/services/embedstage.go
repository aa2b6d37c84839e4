package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// runEmbed turns each document's chunks into embedding records. Chunks
// are batched through the provider; a vector whose dimensionality does
// not match the configured model aborts the stage before any artifact
// is written.
func (s *PipelineService) runEmbed(ctx context.Context, collection string, force bool) (*domain.StageReport, error) {
	docIDs, err := s.artifacts.Completed(ctx, collection, domain.StageChunk)
	if err != nil {
		return nil, fmt.Errorf("listing chunk artifacts: %w", err)
	}
	logger.Section(domain.StageEmbed, "%d chunked documents, model %s", len(docIDs), s.embedder.ModelName())

	return s.runDocs(ctx, collection, domain.StageEmbed, docIDs, func(ctx context.Context, docID string) (domain.StageState, error) {
		return s.embedOne(ctx, collection, docID, force)
	})
}

func (s *PipelineService) embedOne(ctx context.Context, collection, docID string, force bool) (domain.StageState, error) {
	payload, _, err := s.artifacts.Get(ctx, collection, domain.StageChunk, docID)
	if err != nil {
		return domain.StateFailed, err
	}
	inputHash := hashBytes(payload)

	if !force {
		meta, err := s.artifacts.Meta(ctx, collection, domain.StageEmbed, docID)
		if err == nil && meta.ContentHash == inputHash && meta.Model == s.embedder.ModelName() {
			return domain.StateSkipped, nil
		}
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(payload, &chunks); err != nil {
		return domain.StateFailed, fmt.Errorf("decoding chunk artifact: %w", err)
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for start := 0; start < len(chunks); start += s.opts.EmbedBatchSize {
		end := start + s.opts.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		var vectors [][]float32
		err := s.embedPolicy.do(ctx, func(ctx context.Context) error {
			var embErr error
			vectors, embErr = s.embedder.EmbedBatch(ctx, texts)
			return embErr
		})
		if err != nil {
			return domain.StateFailed, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return domain.StateFailed, fmt.Errorf("%w: got %d vectors for %d chunks",
				domain.ErrMalformedResponse, len(vectors), len(batch))
		}

		for i, vec := range vectors {
			if len(vec) != s.embedder.Dimensions() {
				return domain.StateFailed, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
					domain.ErrDimensionMismatch, s.embedder.ModelName(), len(vec), s.embedder.Dimensions())
			}
			c := batch[i]
			records[start+i] = domain.EmbeddingRecord{
				ChunkID:     c.ID,
				DocumentID:  c.DocumentID,
				Sequence:    c.Sequence,
				Content:     c.Content,
				Start:       c.Start,
				End:         c.End,
				Vector:      vec,
				Model:       s.embedder.ModelName(),
				ContentHash: hashBytes([]byte(c.Content)),
			}
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return domain.StateFailed, fmt.Errorf("encoding embedding records: %w", err)
	}

	err = s.artifacts.Put(ctx, collection, domain.StageEmbed, docID, data, driven.ArtifactMeta{
		ContentHash: inputHash,
		Model:       s.embedder.ModelName(),
	})
	if err != nil {
		return domain.StateFailed, fmt.Errorf("storing embed artifact: %w", err)
	}
	return domain.StateDone, nil
}
