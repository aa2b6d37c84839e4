package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStore_PutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta := driven.ArtifactMeta{ContentHash: "abc123", Model: "gemini-2.5-flash-lite"}
	err := store.Put(ctx, "pdfs", domain.StageCleanse, "agreement", []byte("cleaned text"), meta)
	require.NoError(t, err)

	payload, got, err := store.Get(ctx, "pdfs", domain.StageCleanse, "agreement")
	require.NoError(t, err)
	assert.Equal(t, []byte("cleaned text"), payload)
	assert.Equal(t, "abc123", got.ContentHash)
	assert.Equal(t, "gemini-2.5-flash-lite", got.Model)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Get(context.Background(), "pdfs", domain.StageExtract, "nope")
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)
}

func TestStore_PayloadWithoutMarkerIsIncomplete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Simulate a crash between payload write and marker write.
	dir := store.stageDir("pdfs", domain.StageExtract)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "halfdone"), []byte("partial"), 0600))

	_, _, err := store.Get(ctx, "pdfs", domain.StageExtract, "halfdone")
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)

	ids, err := store.Completed(ctx, "pdfs", domain.StageExtract)
	require.NoError(t, err)
	assert.Empty(t, ids, "incomplete artifacts must not be listed as completed")
}

func TestStore_CompletedSorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Put(ctx, "pdfs", domain.StageExtract, id, []byte(id), driven.ArtifactMeta{}))
	}

	ids, err := store.Completed(ctx, "pdfs", domain.StageExtract)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestStore_CompletedEmptyStage(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.Completed(context.Background(), "pdfs", domain.StageEmbed)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_PutOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "pdfs", domain.StageExtract, "doc", []byte("v1"), driven.ArtifactMeta{ContentHash: "h1"}))
	require.NoError(t, store.Put(ctx, "pdfs", domain.StageExtract, "doc", []byte("v2"), driven.ArtifactMeta{ContentHash: "h2"}))

	payload, meta, err := store.Get(ctx, "pdfs", domain.StageExtract, "doc")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), payload)
	assert.Equal(t, "h2", meta.ContentHash)

	ids, err := store.Completed(ctx, "pdfs", domain.StageExtract)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "pdfs", domain.StageChunk, "doc", []byte("x"), driven.ArtifactMeta{}))
	require.NoError(t, store.Delete(ctx, "pdfs", domain.StageChunk, "doc"))

	_, _, err := store.Get(ctx, "pdfs", domain.StageChunk, "doc")
	assert.ErrorIs(t, err, domain.ErrMissingArtifact)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(ctx, "pdfs", domain.StageChunk, "doc"))
}

func TestStore_ConcurrentWritesDistinctKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docID := fmt.Sprintf("doc-%02d", i)
			err := store.Put(ctx, "pdfs", domain.StageExtract, docID, []byte(docID), driven.ArtifactMeta{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ids, err := store.Completed(ctx, "pdfs", domain.StageExtract)
	require.NoError(t, err)
	assert.Len(t, ids, 20)

	for _, id := range ids {
		payload, _, err := store.Get(ctx, "pdfs", domain.StageExtract, id)
		require.NoError(t, err)
		assert.Equal(t, []byte(id), payload)
	}
}

func TestStore_LayoutByCollectionStageDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "pdfs", domain.StageExtract, "doc", []byte("x"), driven.ArtifactMeta{}))

	// The on-disk grouping is collection/stage/document.
	_, err := os.Stat(filepath.Join(store.Root(), "pdfs", "extract", "doc"))
	assert.NoError(t, err)
}
