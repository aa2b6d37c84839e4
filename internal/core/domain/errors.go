package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates an invalid configuration. Fatal for the
	// run; reported at startup, never retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnreadableDocument indicates a source document the OCR engine
	// cannot process (corrupt image, unsupported format). Fatal for that
	// document, never retried.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrProviderUnavailable indicates a transient provider failure
	// (network error, 5xx). Retried with bounded backoff.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited indicates the provider rejected the call for rate
	// limiting. Retried with bounded backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates an external call exceeded its bounded timeout.
	// Distinct from other provider failures so callers can tell a slow
	// collaborator from a broken one.
	ErrTimeout = errors.New("call timed out")

	// ErrAuthFailed indicates the provider rejected the credentials.
	// Fatal; retrying cannot help.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrMalformedResponse indicates the provider returned a response the
	// adapter could not interpret.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrMissingArtifact indicates a stage tried to read an upstream
	// artifact that has no completion marker. Consistency error: fatal for
	// that document's progression.
	ErrMissingArtifact = errors.New("missing stage artifact")

	// ErrDimensionMismatch indicates the embedding dimensionality does not
	// match the vector store configuration. Fatal for the whole run, since
	// continuing would silently corrupt the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelMismatch indicates the query-time embedding model differs
	// from the model recorded at index time. Fatal: distances between
	// vectors from different models are meaningless.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrPartialFailure indicates a batch run completed but some documents
	// failed. Mapped to a distinct exit status by the CLI.
	ErrPartialFailure = errors.New("completed with failures")
)

// Transient reports whether err is a transient provider failure worth
// retrying. Everything else (input, auth, consistency errors) is permanent.
func Transient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}
