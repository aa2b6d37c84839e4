package driving

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// Pipeline runs batch stages over a document collection. Stages never
// call each other; each consumes the previous stage's persisted
// artifacts and produces its own.
type Pipeline interface {
	// RunStage runs one stage for the collection. Per-document failures
	// are collected in the report; the returned error is non-nil only for
	// run-fatal conditions (invalid configuration, consistency errors).
	// With force set, completed artifacts are recomputed.
	RunStage(ctx context.Context, collection string, stage domain.Stage, force bool) (*domain.StageReport, error)

	// Run executes all batch stages in order. It stops at the first
	// run-fatal error and returns the reports of the stages that ran.
	Run(ctx context.Context, collection string, force bool) ([]domain.StageReport, error)
}
