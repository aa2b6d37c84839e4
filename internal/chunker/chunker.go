// Package chunker splits cleaned document text into overlapping
// fixed-size windows aligned to natural boundaries.
package chunker

import (
	"fmt"
	"unicode"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// DefaultMaxSize is the default chunk size in characters.
const DefaultMaxSize = 1000

// DefaultOverlap is the default overlap between chunks in characters.
const DefaultOverlap = 200

// Chunker splits text into chunks of at most maxSize characters. Each cut
// prefers, inside a tolerance window ending at maxSize, a paragraph break,
// then a sentence end, then a word break, before falling back to a hard
// cut. The next chunk starts overlap characters before the previous cut,
// snapped back to the start of the word it lands in.
//
// Chunking is deterministic: the same text and configuration always
// produce the same chunk sequence. Offsets are rune offsets.
type Chunker struct {
	maxSize   int
	overlap   int
	tolerance int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithTolerance sets the boundary search window in characters.
// Defaults to maxSize/4.
func WithTolerance(tolerance int) Option {
	return func(c *Chunker) {
		if tolerance > 0 {
			c.tolerance = tolerance
		}
	}
}

// New creates a chunker. An overlap greater than or equal to maxSize is
// an invalid configuration and fails fast.
func New(maxSize, overlap int, opts ...Option) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk max size must be positive, got %d", domain.ErrInvalidConfig, maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfig, overlap)
	}
	if overlap >= maxSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than max size %d", domain.ErrInvalidConfig, overlap, maxSize)
	}

	c := &Chunker{
		maxSize:   maxSize,
		overlap:   overlap,
		tolerance: maxSize / 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Split chunks the cleaned text of one document. Text shorter than the
// maximum size yields exactly one chunk; empty text yields none.
func (c *Chunker) Split(docID, text string) []domain.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, n/(c.maxSize-c.overlap)+1)
	start := 0
	seq := 0

	for {
		end := start + c.maxSize
		if end >= n {
			end = n
		}

		cut := end
		if end < n {
			cut = c.findBoundary(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(docID, seq),
			DocumentID: docID,
			Sequence:   seq,
			Content:    string(runes[start:cut]),
			Start:      start,
			End:        cut,
		})
		seq++

		if cut >= n {
			return chunks
		}

		next := cut - c.overlap
		if next <= start {
			// Chunk shorter than the overlap; step past it instead of
			// stalling.
			next = cut
		} else {
			next = wordStart(runes, next, start, c.tolerance)
		}
		start = next
	}
}

// findBoundary returns the cut position (exclusive) for a chunk spanning
// [start, end). Boundaries are searched backwards from end within the
// tolerance window; preference order: paragraph break, sentence end,
// whitespace, hard cut at end.
func (c *Chunker) findBoundary(runes []rune, start, end int) int {
	lo := end - c.tolerance
	if lo <= start {
		lo = start + 1
	}

	// Paragraph break: cut right after a blank line.
	for p := end; p >= lo; p-- {
		if p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n' {
			return p
		}
	}

	// Sentence end: cut right after terminal punctuation followed by
	// whitespace (or at the very end of the window).
	for p := end; p >= lo; p-- {
		if isSentenceEnd(runes[p-1]) && (p == len(runes) || unicode.IsSpace(runes[p])) {
			return p
		}
	}

	// Word break: cut right after the last whitespace in the window.
	for p := end; p >= lo; p-- {
		if unicode.IsSpace(runes[p-1]) {
			return p
		}
	}

	// No boundary within tolerance: hard cut.
	return end
}

// wordStart moves pos back to the start of the word it lands in, so an
// overlap never begins mid-word. The walk is bounded by maxWalk and never
// reaches floor; if no word start is found the original position wins
// (text without whitespace, e.g. a hard-cut run).
func wordStart(runes []rune, pos, floor, maxWalk int) int {
	for p := pos; p > floor+1 && pos-p <= maxWalk; p-- {
		if unicode.IsSpace(runes[p-1]) {
			return p
		}
	}
	return pos
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
