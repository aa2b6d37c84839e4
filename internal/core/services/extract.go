package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// runExtract discovers supported documents in the input directory and
// extracts their text, one artifact per document. Pages are joined with
// the page break marker so later stages can split on page boundaries.
func (s *PipelineService) runExtract(ctx context.Context, collection string, force bool) (*domain.StageReport, error) {
	if len(s.engines) == 0 {
		return nil, fmt.Errorf("%w: no OCR engines configured", domain.ErrInvalidConfig)
	}

	paths, err := s.discoverInputs()
	if err != nil {
		return nil, err
	}
	logger.Section(domain.StageExtract, "%d documents in %s", len(paths), s.opts.InputDir)

	byID := make(map[string]string, len(paths))
	docIDs := make([]string, 0, len(paths))
	for _, p := range paths {
		id := domain.DeriveDocumentID(p)
		byID[id] = p
		docIDs = append(docIDs, id)
	}

	return s.runDocs(ctx, collection, domain.StageExtract, docIDs, func(ctx context.Context, docID string) (domain.StageState, error) {
		return s.extractOne(ctx, collection, docID, byID[docID], force)
	})
}

// discoverInputs lists input files any engine can handle, sorted.
func (s *PipelineService) discoverInputs() ([]string, error) {
	entries, err := os.ReadDir(s.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading input directory %s: %v", domain.ErrInvalidConfig, s.opts.InputDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(s.opts.InputDir, entry.Name())
		for _, engine := range s.engines {
			if engine.Supports(path) {
				paths = append(paths, path)
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *PipelineService) extractOne(ctx context.Context, collection, docID, path string, force bool) (domain.StageState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.StateFailed, fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}
	sourceHash := hashBytes(raw)

	if !force {
		meta, err := s.artifacts.Meta(ctx, collection, domain.StageExtract, docID)
		if err == nil && meta.ContentHash == sourceHash {
			return domain.StateSkipped, nil
		}
	}

	text, err := s.extractText(ctx, path)
	if err != nil {
		return domain.StateFailed, err
	}

	err = s.artifacts.Put(ctx, collection, domain.StageExtract, docID, []byte(text), driven.ArtifactMeta{
		ContentHash: sourceHash,
	})
	if err != nil {
		return domain.StateFailed, fmt.Errorf("storing extract artifact: %w", err)
	}
	return domain.StateDone, nil
}

// extractText tries each engine in order. An engine that does not
// support the file or finds it unreadable yields to the next one.
func (s *PipelineService) extractText(ctx context.Context, path string) (string, error) {
	var lastErr error
	for _, engine := range s.engines {
		if !engine.Supports(path) {
			continue
		}

		pages, err := engine.ExtractPages(ctx, path)
		if err != nil {
			lastErr = err
			if errors.Is(err, domain.ErrUnreadableDocument) {
				logger.Debug("%s: %s, trying next engine", engine.Name(), err)
				continue
			}
			return "", err
		}

		texts := make([]string, len(pages))
		for i, p := range pages {
			texts[i] = strings.TrimSpace(p.Text)
		}
		joined := strings.Join(texts, domain.PageBreak)
		if strings.TrimSpace(joined) == "" {
			lastErr = fmt.Errorf("%w: %s produced no text", domain.ErrUnreadableDocument, engine.Name())
			continue
		}
		return joined, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no engine supports %s", domain.ErrUnreadableDocument, filepath.Base(path))
	}
	return "", lastErr
}
