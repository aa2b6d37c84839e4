package driving

import (
	"context"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

// AskOptions configures a single query.
type AskOptions struct {
	// K is the number of chunks to retrieve. Zero means the configured
	// default.
	K int
}

// Answerer answers natural-language questions against an indexed
// collection. Stateless per call; safe for concurrent queries.
type Answerer interface {
	Ask(ctx context.Context, collection, question string, opts AskOptions) (*domain.Answer, error)
}
