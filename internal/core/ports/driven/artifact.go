package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// ArtifactMeta is the completion marker content for one artifact.
// The marker is written only after the payload is fully flushed, so a
// crash mid-write never leaves a partial artifact that reads as complete.
type ArtifactMeta struct {
	// ContentHash is the SHA-256 hash of the *input* the stage consumed
	// (source file or upstream artifact). Stages compare it against the
	// current input to decide whether recomputation is needed.
	ContentHash string `json:"content_hash"`

	// Model records the provider model that produced the payload, where
	// one was involved (cleanse, embed). Empty otherwise.
	Model string `json:"model,omitempty"`

	// CompletedAt is when the artifact was fully written.
	CompletedAt time.Time `json:"completed_at"`
}

// ArtifactStore persists each stage's output per document, keyed by
// (collection, stage, document ID). It centralises the atomicity and
// skip-if-already-done logic so stages do not re-implement it.
//
// Concurrent writes to distinct document keys are safe; writes for one
// key are atomic (temp-write then rename).
type ArtifactStore interface {
	// Put atomically writes the payload and then its completion marker.
	Put(ctx context.Context, collection string, stage domain.Stage, docID string, payload []byte, meta ArtifactMeta) error

	// Get returns the payload and marker for a completed artifact.
	// An absent or incomplete artifact is domain.ErrMissingArtifact.
	Get(ctx context.Context, collection string, stage domain.Stage, docID string) ([]byte, ArtifactMeta, error)

	// Meta returns just the completion marker, or domain.ErrMissingArtifact.
	Meta(ctx context.Context, collection string, stage domain.Stage, docID string) (ArtifactMeta, error)

	// Completed lists the document IDs with completed artifacts for the
	// stage, sorted. Stages diff this against the previous stage's set to
	// discover what still needs processing.
	Completed(ctx context.Context, collection string, stage domain.Stage) ([]string, error)

	// Delete removes an artifact and its marker.
	Delete(ctx context.Context, collection string, stage domain.Stage, docID string) error
}
