package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// runIndex upserts each document's embedding records into the vector
// index, keyed by chunk ID. Re-indexing is idempotent: unchanged chunks
// are detected by content hash and left alone.
func (s *PipelineService) runIndex(ctx context.Context, collection string, force bool) (*domain.StageReport, error) {
	docIDs, err := s.artifacts.Completed(ctx, collection, domain.StageEmbed)
	if err != nil {
		return nil, fmt.Errorf("listing embed artifacts: %w", err)
	}
	logger.Section(domain.StageIndex, "%d embedded documents", len(docIDs))

	var (
		mu         sync.Mutex
		indexStats domain.IndexReport
	)

	report, err := s.runDocs(ctx, collection, domain.StageIndex, docIDs, func(ctx context.Context, docID string) (domain.StageState, error) {
		state, stats, err := s.indexOne(ctx, collection, docID, force)
		mu.Lock()
		indexStats.Inserted += stats.Inserted
		indexStats.Updated += stats.Updated
		indexStats.Skipped += stats.Skipped
		indexStats.Failed += stats.Failed
		indexStats.Failures = append(indexStats.Failures, stats.Failures...)
		mu.Unlock()
		return state, err
	})
	if err != nil {
		return nil, err
	}
	report.Index = &indexStats

	if err := s.catalog.SaveCollection(ctx, driven.CollectionInfo{
		Name:           collection,
		EmbeddingModel: s.embedder.ModelName(),
		Dimensions:     s.embedder.Dimensions(),
	}); err != nil {
		logger.Warn("failed to record collection metadata: %v", err)
	}

	return report, nil
}

// indexMarker is the index stage's artifact payload.
type indexMarker struct {
	Chunks int `json:"chunks"`
}

func (s *PipelineService) indexOne(ctx context.Context, collection, docID string, force bool) (domain.StageState, domain.IndexReport, error) {
	var stats domain.IndexReport

	payload, _, err := s.artifacts.Get(ctx, collection, domain.StageEmbed, docID)
	if err != nil {
		return domain.StateFailed, stats, err
	}
	inputHash := hashBytes(payload)

	if !force {
		meta, err := s.artifacts.Meta(ctx, collection, domain.StageIndex, docID)
		if err == nil && meta.ContentHash == inputHash {
			return domain.StateSkipped, stats, nil
		}
	}

	var records []domain.EmbeddingRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return domain.StateFailed, stats, fmt.Errorf("decoding embed artifact: %w", err)
	}

	for _, rec := range records {
		entry := driven.IndexedEntry{
			ChunkID: rec.ChunkID,
			Vector:  rec.Vector,
			Content: rec.Content,
			Metadata: map[string]string{
				"document_id":  rec.DocumentID,
				"sequence":     fmt.Sprintf("%d", rec.Sequence),
				"start":        fmt.Sprintf("%d", rec.Start),
				"end":          fmt.Sprintf("%d", rec.End),
				"model":        rec.Model,
				"content_hash": rec.ContentHash,
			},
		}

		existing, getErr := s.index.Get(ctx, rec.ChunkID)
		if getErr == nil && !force &&
			existing.Metadata["content_hash"] == rec.ContentHash &&
			existing.Metadata["model"] == rec.Model {
			stats.Skipped++
			continue
		}

		if err := s.index.Upsert(ctx, entry); err != nil {
			if fatal(err) {
				return domain.StateFailed, stats, err
			}
			stats.Failed++
			stats.Failures = append(stats.Failures, domain.DocumentFailure{
				DocumentID: rec.ChunkID,
				Reason:     err.Error(),
			})
			continue
		}
		if getErr == nil {
			stats.Updated++
		} else {
			stats.Inserted++
		}
	}

	if stats.Failed > 0 {
		return domain.StateFailed, stats, fmt.Errorf("%d of %d chunks failed to index", stats.Failed, len(records))
	}

	marker, err := json.Marshal(indexMarker{Chunks: len(records)})
	if err != nil {
		return domain.StateFailed, stats, fmt.Errorf("encoding index marker: %w", err)
	}
	err = s.artifacts.Put(ctx, collection, domain.StageIndex, docID, marker, driven.ArtifactMeta{
		ContentHash: inputHash,
		Model:       s.embedder.ModelName(),
	})
	if err != nil {
		return domain.StateFailed, stats, fmt.Errorf("storing index marker: %w", err)
	}
	return domain.StateDone, stats, nil
}
