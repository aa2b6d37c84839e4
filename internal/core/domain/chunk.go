package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Chunk is a contiguous span of cleaned text sized for embedding and
// retrieval. Consecutive chunks from the same document overlap by a
// configured number of characters except at document boundaries.
type Chunk struct {
	// ID is the stable chunk identifier, "<document id>#<sequence>".
	ID string `json:"id"`

	// DocumentID links back to the source document.
	DocumentID string `json:"document_id"`

	// Sequence is the ordinal position within the document.
	Sequence int `json:"sequence"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Start and End are the character (rune) offsets of the chunk in the
	// cleaned document text, end exclusive.
	Start int `json:"start"`
	End   int `json:"end"`
}

// ChunkID builds the stable identifier for a chunk. The sequence is
// zero-padded so lexical and numeric ordering agree.
func ChunkID(docID string, sequence int) string {
	return fmt.Sprintf("%s#%04d", docID, sequence)
}

// ParseChunkID splits a chunk identifier into document ID and sequence.
func ParseChunkID(id string) (docID string, sequence int, err error) {
	idx := strings.LastIndex(id, "#")
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, fmt.Errorf("%w: malformed chunk id %q", ErrInvalidInput, id)
	}
	seq, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed chunk id %q", ErrInvalidInput, id)
	}
	return id[:idx], seq, nil
}

// EmbeddingRecord pairs a chunk with its vector. Records are persisted as
// the embedding stage's artifact, independently of the vector store, so
// the index can be rebuilt without recomputing embeddings.
type EmbeddingRecord struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Sequence   int       `json:"sequence"`
	Content    string    `json:"content"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Vector     []float32 `json:"vector"`

	// Model identifies the embedding model that produced the vector.
	// Query-time embeddings must come from the same model.
	Model string `json:"model"`

	// ContentHash is the SHA-256 of the chunk content, used for
	// content-addressed skip and upsert change detection.
	ContentHash string `json:"content_hash"`
}
