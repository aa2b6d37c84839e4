package domain

// RetrievedChunk is one retrieval hit: a chunk with its vector distance
// from the query. Lower distance means more similar.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Distance   float32 `json:"distance"`
}

// AnswerOutcome distinguishes the possible results of a query.
// "Insufficient context" is a successful outcome, not an error.
type AnswerOutcome string

const (
	// OutcomeAnswered means the answering model produced a grounded answer.
	OutcomeAnswered AnswerOutcome = "answered"

	// OutcomeInsufficientContext means no relevant chunks were found; the
	// answering model was never called.
	OutcomeInsufficientContext AnswerOutcome = "insufficient_context"
)

// Answer is the result of the retrieval-and-answer flow. Ephemeral; never
// persisted.
type Answer struct {
	Outcome AnswerOutcome `json:"outcome"`

	// Text is the answering model's completion, verbatim. Empty when the
	// outcome is insufficient context.
	Text string `json:"text,omitempty"`

	// Sources lists the chunks included in the answering context, in
	// ascending distance order, for citation and traceability.
	Sources []RetrievedChunk `json:"sources,omitempty"`
}
