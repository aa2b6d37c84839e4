package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewMemory("contracts", 3)
	require.NoError(t, err)
	return ix
}

func entry(chunkID string, vec []float32, content string) driven.IndexedEntry {
	return driven.IndexedEntry{
		ChunkID: chunkID,
		Vector:  vec,
		Content: content,
		Metadata: map[string]string{
			"document_id": "lease-2024.pdf",
		},
	}
}

func TestIndex_UpsertAndGet(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	e := entry("lease-2024#0000", []float32{1, 0, 0}, "The term is two years.")
	require.NoError(t, ix.Upsert(ctx, e))

	got, err := ix.Get(ctx, "lease-2024#0000")
	require.NoError(t, err)
	assert.Equal(t, e.ChunkID, got.ChunkID)
	assert.Equal(t, e.Content, got.Content)
	assert.Equal(t, e.Metadata["document_id"], got.Metadata["document_id"])
	assert.NotContains(t, got.Metadata, "insert_seq")
}

func TestIndex_Get_NotFound(t *testing.T) {
	ix := newTestIndex(t)

	_, err := ix.Get(context.Background(), "missing#0000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_Upsert_Overwrites(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, entry("doc#0000", []float32{1, 0, 0}, "old")))
	require.NoError(t, ix.Upsert(ctx, entry("doc#0000", []float32{0, 1, 0}, "new")))

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := ix.Get(ctx, "doc#0000")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)
}

func TestIndex_Upsert_DimensionMismatch(t *testing.T) {
	ix := newTestIndex(t)

	err := ix.Upsert(context.Background(), entry("doc#0000", []float32{1, 0}, "short vector"))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_Query_ClosestFirst(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, entry("a#0000", []float32{1, 0, 0}, "exact")))
	require.NoError(t, ix.Upsert(ctx, entry("a#0001", []float32{0.9, 0.1, 0}, "near")))
	require.NoError(t, ix.Upsert(ctx, entry("a#0002", []float32{0, 0, 1}, "far")))

	hits, err := ix.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a#0000", hits[0].Entry.ChunkID)
	assert.Equal(t, "a#0001", hits[1].Entry.ChunkID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
}

func TestIndex_Query_TiesFollowInsertionOrder(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	// IDs deliberately out of lexicographic order so ID ordering
	// cannot masquerade as insertion ordering.
	order := []string{"c#0000", "a#0000", "b#0000", "e#0000", "d#0000", "f#0000"}
	for _, id := range order {
		require.NoError(t, ix.Upsert(ctx, entry(id, []float32{1, 0, 0}, "tied")))
	}

	for i := 0; i < 20; i++ {
		hits, err := ix.Query(ctx, []float32{1, 0, 0}, len(order))
		require.NoError(t, err)
		require.Len(t, hits, len(order))
		for i, id := range order {
			assert.Equal(t, id, hits[i].Entry.ChunkID)
		}
	}
}

func TestIndex_Query_ReupsertKeepsTieOrder(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, entry("b#0000", []float32{1, 0, 0}, "first")))
	require.NoError(t, ix.Upsert(ctx, entry("a#0000", []float32{1, 0, 0}, "second")))
	require.NoError(t, ix.Upsert(ctx, entry("b#0000", []float32{1, 0, 0}, "first updated")))

	hits, err := ix.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b#0000", hits[0].Entry.ChunkID)
	assert.Equal(t, "first updated", hits[0].Entry.Content)
	assert.Equal(t, "a#0000", hits[1].Entry.ChunkID)
}

func TestIndex_Query_ClampsK(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, entry("a#0000", []float32{1, 0, 0}, "only")))

	hits, err := ix.Query(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndex_Query_EmptyIndex(t *testing.T) {
	ix := newTestIndex(t)

	hits, err := ix.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Query_InvalidK(t *testing.T) {
	ix := newTestIndex(t)

	_, err := ix.Query(context.Background(), []float32{1, 0, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_Query_DimensionMismatch(t *testing.T) {
	ix := newTestIndex(t)

	_, err := ix.Query(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestNewPersistent_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ix, err := NewPersistent(dir, "contracts", 3)
	require.NoError(t, err)
	require.NoError(t, ix.Upsert(ctx, entry("a#0000", []float32{0, 1, 0}, "persisted")))
	require.NoError(t, ix.Close())

	reopened, err := NewPersistent(dir, "contracts", 3)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "a#0000")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Content)
}

func TestNewPersistent_InvalidDimensions(t *testing.T) {
	_, err := NewPersistent(t.TempDir(), "contracts", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
