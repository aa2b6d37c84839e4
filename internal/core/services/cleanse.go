package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

// runCleanse repairs each extracted text through the cleansing model.
// A document whose retries are exhausted is marked failed; raw text is
// never passed downstream.
func (s *PipelineService) runCleanse(ctx context.Context, collection string, force bool) (*domain.StageReport, error) {
	docIDs, err := s.artifacts.Completed(ctx, collection, domain.StageExtract)
	if err != nil {
		return nil, fmt.Errorf("listing extract artifacts: %w", err)
	}
	logger.Section(domain.StageCleanse, "%d extracted documents", len(docIDs))

	return s.runDocs(ctx, collection, domain.StageCleanse, docIDs, func(ctx context.Context, docID string) (domain.StageState, error) {
		return s.cleanseOne(ctx, collection, docID, force)
	})
}

func (s *PipelineService) cleanseOne(ctx context.Context, collection, docID string, force bool) (domain.StageState, error) {
	payload, _, err := s.artifacts.Get(ctx, collection, domain.StageExtract, docID)
	if err != nil {
		return domain.StateFailed, err
	}
	inputHash := hashBytes(payload)

	if !force {
		meta, err := s.artifacts.Meta(ctx, collection, domain.StageCleanse, docID)
		if err == nil && meta.ContentHash == inputHash && meta.Model == s.cleanser.ModelName() {
			return domain.StateSkipped, nil
		}
	}

	segments := splitSegments(string(payload), s.opts.CleanseMaxInputChars)
	cleaned := make([]string, len(segments))
	for i, segment := range segments {
		var reply string
		err := s.llmPolicy.do(ctx, func(ctx context.Context) error {
			var chatErr error
			reply, chatErr = s.cleanser.Chat(ctx, []driven.ChatMessage{
				{Role: "system", Content: cleansePrompt},
				{Role: "user", Content: segment},
			}, driven.ChatOptions{Temperature: s.opts.CleanseTemperature})
			return chatErr
		})
		if err != nil {
			return domain.StateFailed, fmt.Errorf("cleansing segment %d/%d: %w", i+1, len(segments), err)
		}
		cleaned[i] = strings.TrimSpace(reply)
	}

	result := strings.Join(cleaned, "\n\n")
	if strings.TrimSpace(result) == "" {
		return domain.StateFailed, fmt.Errorf("%w: cleansing produced empty text", domain.ErrMalformedResponse)
	}

	err = s.artifacts.Put(ctx, collection, domain.StageCleanse, docID, []byte(result), driven.ArtifactMeta{
		ContentHash: inputHash,
		Model:       s.cleanser.ModelName(),
	})
	if err != nil {
		return domain.StateFailed, fmt.Errorf("storing cleanse artifact: %w", err)
	}
	return domain.StateDone, nil
}

// splitSegments breaks text into pieces no longer than maxChars,
// preferring page breaks, then paragraph breaks. A single oversized
// paragraph is passed through whole rather than cut mid-sentence.
func splitSegments(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for _, page := range strings.Split(text, domain.PageBreak) {
		for _, para := range strings.Split(page, "\n\n") {
			if para == "" {
				continue
			}
			if current.Len() > 0 && current.Len()+len(para)+2 > maxChars {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	flush()

	if len(segments) == 0 {
		return []string{text}
	}
	return segments
}
