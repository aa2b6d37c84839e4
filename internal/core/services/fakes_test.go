package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// memArtifacts is an in-memory driven.ArtifactStore.
type memArtifacts struct {
	mu    sync.Mutex
	items map[string]memArtifact
}

type memArtifact struct {
	payload []byte
	meta    driven.ArtifactMeta
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{items: make(map[string]memArtifact)}
}

func artifactKey(collection string, stage domain.Stage, docID string) string {
	return collection + "/" + string(stage) + "/" + docID
}

func (m *memArtifacts) Put(_ context.Context, collection string, stage domain.Stage, docID string, payload []byte, meta driven.ArtifactMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta.CompletedAt.IsZero() {
		meta.CompletedAt = time.Now().UTC()
	}
	m.items[artifactKey(collection, stage, docID)] = memArtifact{payload: payload, meta: meta}
	return nil
}

func (m *memArtifacts) Get(_ context.Context, collection string, stage domain.Stage, docID string) ([]byte, driven.ArtifactMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[artifactKey(collection, stage, docID)]
	if !ok {
		return nil, driven.ArtifactMeta{}, fmt.Errorf("%w: %s/%s/%s", domain.ErrMissingArtifact, collection, stage, docID)
	}
	return item.payload, item.meta, nil
}

func (m *memArtifacts) Meta(ctx context.Context, collection string, stage domain.Stage, docID string) (driven.ArtifactMeta, error) {
	_, meta, err := m.Get(ctx, collection, stage, docID)
	return meta, err
}

func (m *memArtifacts) Completed(_ context.Context, collection string, stage domain.Stage) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := collection + "/" + string(stage) + "/"
	var ids []string
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			ids = append(ids, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memArtifacts) Delete(_ context.Context, collection string, stage domain.Stage, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, artifactKey(collection, stage, docID))
	return nil
}

// memCatalog is an in-memory driven.Catalog.
type memCatalog struct {
	mu          sync.Mutex
	statuses    map[string]driven.DocumentStatus
	runs        []driven.RunRecord
	collections map[string]driven.CollectionInfo
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		statuses:    make(map[string]driven.DocumentStatus),
		collections: make(map[string]driven.CollectionInfo),
	}
}

func (m *memCatalog) SetDocumentStatus(_ context.Context, status driven.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := status.Collection + "/" + status.DocumentID + "/" + string(status.Stage)
	m.statuses[key] = status
	return nil
}

func (m *memCatalog) DocumentStatuses(_ context.Context, collection string) ([]driven.DocumentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []driven.DocumentStatus
	for _, s := range m.statuses {
		if s.Collection == collection {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Stage < out[j].Stage
	})
	return out, nil
}

func (m *memCatalog) SaveRun(_ context.Context, run driven.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memCatalog) Runs(_ context.Context, collection string, limit int) ([]driven.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []driven.RunRecord
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].Collection == collection {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *memCatalog) SaveCollection(_ context.Context, info driven.CollectionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[info.Name] = info
	return nil
}

func (m *memCatalog) GetCollection(_ context.Context, name string) (*driven.CollectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
	}
	return &info, nil
}

func (m *memCatalog) Close() error { return nil }

// fakeIndex is an in-memory driven.VectorIndex ranking by cosine
// similarity.
type fakeIndex struct {
	mu         sync.Mutex
	dimensions int
	entries    map[string]driven.IndexedEntry
	upserts    int
}

func newFakeIndex(dimensions int) *fakeIndex {
	return &fakeIndex{dimensions: dimensions, entries: make(map[string]driven.IndexedEntry)}
}

func (f *fakeIndex) Upsert(_ context.Context, entry driven.IndexedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(entry.Vector) != f.dimensions {
		return fmt.Errorf("%w: %d != %d", domain.ErrDimensionMismatch, len(entry.Vector), f.dimensions)
	}
	f.entries[entry.ChunkID] = entry
	f.upserts++
	return nil
}

func (f *fakeIndex) Get(_ context.Context, chunkID string) (*driven.IndexedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[chunkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, chunkID)
	}
	return &entry, nil
}

func (f *fakeIndex) Query(_ context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	hits := make([]driven.VectorHit, 0, len(f.entries))
	for _, entry := range f.entries {
		hits = append(hits, driven.VectorHit{
			Entry:    entry,
			Distance: 1 - cosine(vector, entry.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeIndex) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

func (f *fakeIndex) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// fakeEngine is a scripted driven.OCREngine.
type fakeEngine struct {
	name     string
	suffixes []string
	pages    map[string][]driven.Page
	err      error
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Supports(path string) bool {
	for _, s := range f.suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

func (f *fakeEngine) ExtractPages(_ context.Context, path string) ([]driven.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	pages, ok := f.pages[path]
	if !ok {
		return nil, fmt.Errorf("%w: no scripted pages for %s", domain.ErrUnreadableDocument, path)
	}
	return pages, nil
}

// fakeLLM is a scripted driven.LLMService. failures counts down
// transient errors before replies succeed.
type fakeLLM struct {
	mu       sync.Mutex
	model    string
	reply    func(messages []driven.ChatMessage) string
	failures int
	failWith error
	calls    [][]driven.ChatMessage
}

func (f *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.failures > 0 {
		f.failures--
		return "", f.failWith
	}
	if f.failures < 0 {
		return "", f.failWith
	}
	if f.reply == nil {
		return lastContent(messages), nil
	}
	return f.reply(messages), nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func lastContent(messages []driven.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}

func (f *fakeLLM) ModelName() string {
	if f.model == "" {
		return "fake-llm"
	}
	return f.model
}

func (f *fakeLLM) Ping(context.Context) error { return nil }

func (f *fakeLLM) Close() error { return nil }

// fakeEmbedder produces deterministic vectors derived from the text.
type fakeEmbedder struct {
	mu         sync.Mutex
	model      string
	dimensions int
	vectorFor  func(text string) []float32
	badDims    bool
	calls      int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.vectorFor != nil {
			out[i] = f.vectorFor(text)
			continue
		}
		dims := f.dimensions
		if f.badDims {
			dims++
		}
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = float32((len(text)+i+j)%7) + 1
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dimensions }

func (f *fakeEmbedder) ModelName() string {
	if f.model == "" {
		return "fake-embed"
	}
	return f.model
}

func (f *fakeEmbedder) Ping(context.Context) error { return nil }

func (f *fakeEmbedder) Close() error { return nil }
