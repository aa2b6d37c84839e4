// Package chromem provides a vector index adapter backed by chromem-go,
// an embedded vector store persisted to local disk.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// seqKey holds the insertion sequence in entry metadata. chromem orders
// equal-similarity results arbitrarily, so queries break distance ties
// on this sequence.
const seqKey = "insert_seq"

// Index stores chunk embeddings in a chromem-go collection.
type Index struct {
	collection *chromemgo.Collection
	dimensions int
	seq        atomic.Int64
}

// NewPersistent opens (or creates) a persistent index under dir for the
// named collection. Vectors must have the given dimensionality.
func NewPersistent(dir, collection string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector index dimensions must be positive", domain.ErrInvalidConfig)
	}

	db, err := chromemgo.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	// Embeddings are always supplied explicitly, so no embedding
	// function is registered.
	coll, err := db.GetOrCreateCollection(collection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", collection, err)
	}

	return &Index{collection: coll, dimensions: dimensions}, nil
}

// NewMemory creates an in-memory index, used in tests.
func NewMemory(collection string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector index dimensions must be positive", domain.ErrInvalidConfig)
	}

	db := chromemgo.NewDB()
	coll, err := db.GetOrCreateCollection(collection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", collection, err)
	}

	return &Index{collection: coll, dimensions: dimensions}, nil
}

// noEmbedding guards against accidental implicit embedding calls.
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("implicit embedding is disabled")
}

// nextSeq returns a sequence number greater than any handed out before,
// in this process or a previous one. Nanosecond wall time seeds the
// counter so sequences stay increasing across reopens of a persistent
// index without a recovery scan.
func (ix *Index) nextSeq() int64 {
	for {
		now := time.Now().UnixNano()
		last := ix.seq.Load()
		if now <= last {
			now = last + 1
		}
		if ix.seq.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Upsert inserts or replaces the entry keyed by its chunk ID. A replaced
// entry keeps its original insertion sequence.
func (ix *Index) Upsert(ctx context.Context, entry driven.IndexedEntry) error {
	if len(entry.Vector) != ix.dimensions {
		return fmt.Errorf("%w: entry %s has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, entry.ChunkID, len(entry.Vector), ix.dimensions)
	}

	var seq string
	if existing, err := ix.collection.GetByID(ctx, entry.ChunkID); err == nil {
		seq = existing.Metadata[seqKey]
	}
	if seq == "" {
		seq = strconv.FormatInt(ix.nextSeq(), 10)
	}

	meta := make(map[string]string, len(entry.Metadata)+1)
	for k, v := range entry.Metadata {
		meta[k] = v
	}
	meta[seqKey] = seq

	doc := chromemgo.Document{
		ID:        entry.ChunkID,
		Metadata:  meta,
		Embedding: entry.Vector,
		Content:   entry.Content,
	}
	if err := ix.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("upserting %s: %w", entry.ChunkID, err)
	}
	return nil
}

// Get returns the entry for the chunk ID, or ErrNotFound.
func (ix *Index) Get(ctx context.Context, chunkID string) (*driven.IndexedEntry, error) {
	doc, err := ix.collection.GetByID(ctx, chunkID)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %s", domain.ErrNotFound, chunkID)
	}

	return &driven.IndexedEntry{
		ChunkID:  doc.ID,
		Vector:   doc.Embedding,
		Content:  doc.Content,
		Metadata: exportMetadata(doc.Metadata),
	}, nil
}

// exportMetadata returns the caller-visible metadata, without the
// adapter's sequence bookkeeping.
func exportMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if k == seqKey {
			continue
		}
		out[k] = v
	}
	return out
}

// seqOf parses an entry's insertion sequence. Entries written before
// sequences existed sort last among their ties.
func seqOf(meta map[string]string) int64 {
	n, err := strconv.ParseInt(meta[seqKey], 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

// Query returns up to k nearest entries by cosine distance, closest
// first with ties in insertion order. k is clamped to the collection
// size.
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if len(vector) != ix.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(vector), ix.dimensions)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := ix.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	// Ties on distance are broken by insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return seqOf(results[i].Metadata) < seqOf(results[j].Metadata)
	})

	hits := make([]driven.VectorHit, len(results))
	for i, res := range results {
		hits[i] = driven.VectorHit{
			Entry: driven.IndexedEntry{
				ChunkID:  res.ID,
				Vector:   res.Embedding,
				Content:  res.Content,
				Metadata: exportMetadata(res.Metadata),
			},
			// chromem reports cosine similarity in [-1, 1].
			Distance: 1 - res.Similarity,
		}
	}
	return hits, nil
}

// Count returns the number of indexed entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.collection.Count(), nil
}

// Close releases resources. chromem persists on write, so this is a no-op.
func (ix *Index) Close() error {
	return nil
}
