package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// cleansePrompt instructs the model to repair OCR output without
// rewriting it. Cleansing runs at temperature zero.
const cleansePrompt = `You are a text restoration assistant. You receive raw OCR output from scanned documents. Your job:

1. Fix broken words, stray characters and OCR misreads.
2. Rejoin lines that were split mid-sentence and restore paragraphs.
3. Remove page headers, footers, page numbers and scanning artifacts.
4. Keep every piece of substantive content. Never summarise, never paraphrase, never add anything.
5. Keep the original language of the document.

Return only the restored text, with no commentary.`

// answerPrompt instructs the model to answer strictly from the
// retrieved context.
const answerPrompt = `You are an assistant that answers questions using only the provided document excerpts.

Rules:
1. Use only the information in the excerpts below. Do not use outside knowledge.
2. If the excerpts do not contain the answer, reply exactly: ` + InsufficientContextReply + `
3. When the excerpts support an answer, cite the source markers, e.g. [source: lease-2024.pdf].
4. Answer in the language of the question.`

// InsufficientContextReply is the fixed sentence the answering model
// returns when the retrieved excerpts cannot support an answer.
const InsufficientContextReply = "I could not find that information in the indexed documents."

// buildContext renders retrieved chunks into the excerpt block passed to
// the answering model. Chunks arrive closest first; when a character
// budget is set, whole chunks are dropped from the far end to fit.
func buildContext(chunks []domain.RetrievedChunk, budget int) (string, []domain.RetrievedChunk) {
	kept := chunks
	if budget > 0 {
		total := 0
		for i, c := range chunks {
			size := len(c.Content) + len(c.DocumentID) + 32
			if total+size > budget && i > 0 {
				kept = chunks[:i]
				break
			}
			total += size
		}
	}

	var b strings.Builder
	for i, c := range kept {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[source: %s]\n%s", c.DocumentID, c.Content)
	}
	return b.String(), kept
}
