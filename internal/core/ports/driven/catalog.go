package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// DocumentStatus records the processing state of one document at one stage.
type DocumentStatus struct {
	Collection string
	DocumentID string
	SourcePath string
	Stage      domain.Stage
	State      domain.StageState

	// Error holds the failure reason when State is StateFailed.
	Error string

	UpdatedAt time.Time
}

// RunRecord summarises one stage run for the status history.
type RunRecord struct {
	ID         string
	Collection string
	Stage      domain.Stage
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Skipped    int
	Failed     int
}

// CollectionInfo records index-level facts about a collection, notably
// the embedding model, so a query-time model mismatch is detectable.
type CollectionInfo struct {
	Name           string
	EmbeddingModel string
	Dimensions     int
	UpdatedAt      time.Time
}

// Catalog persists per-document stage status, run summaries and
// collection metadata. Backed by SQLite.
type Catalog interface {
	// SetDocumentStatus stores or updates a document's state at a stage.
	SetDocumentStatus(ctx context.Context, status DocumentStatus) error

	// DocumentStatuses returns all statuses for a collection, ordered by
	// document ID then stage.
	DocumentStatuses(ctx context.Context, collection string) ([]DocumentStatus, error)

	// SaveRun appends a run summary.
	SaveRun(ctx context.Context, run RunRecord) error

	// Runs returns up to limit run summaries for a collection, most
	// recent first.
	Runs(ctx context.Context, collection string, limit int) ([]RunRecord, error)

	// SaveCollection stores or updates collection metadata.
	SaveCollection(ctx context.Context, info CollectionInfo) error

	// GetCollection retrieves collection metadata, or domain.ErrNotFound.
	GetCollection(ctx context.Context, name string) (*CollectionInfo, error)

	// Close releases the underlying database.
	Close() error
}
