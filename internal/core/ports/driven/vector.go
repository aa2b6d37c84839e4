package driven

import "context"

// IndexedEntry is the vector store's view of an embedding record:
// vector plus metadata keyed by chunk identifier.
type IndexedEntry struct {
	// ChunkID is the upsert key. Re-indexing the same chunk identifier
	// overwrites, never duplicates.
	ChunkID string

	// Vector is the embedding.
	Vector []float32

	// Content is the chunk text, stored for context assembly.
	Content string

	// Metadata holds document ID, sequence, offsets, model and content
	// hash as strings.
	Metadata map[string]string
}

// VectorHit is one nearest-neighbour result.
type VectorHit struct {
	Entry IndexedEntry

	// Distance is the vector distance to the query (lower is closer).
	Distance float32
}

// VectorIndex provides keyed upsert and nearest-neighbour search.
type VectorIndex interface {
	// Upsert inserts or overwrites the entry keyed by its chunk ID.
	// A vector whose dimensionality does not match the index is rejected
	// with domain.ErrDimensionMismatch.
	Upsert(ctx context.Context, entry IndexedEntry) error

	// Get retrieves an entry by chunk ID, or domain.ErrNotFound.
	Get(ctx context.Context, chunkID string) (*IndexedEntry, error)

	// Query returns the k nearest entries by ascending distance.
	// Ties are broken by insertion order (stable).
	Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error)

	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
