package domain

// DocumentFailure records why one document failed a stage.
type DocumentFailure struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}

// StageReport summarises one stage run over a collection.
type StageReport struct {
	Collection string `json:"collection"`
	Stage      Stage  `json:"stage"`

	// Succeeded counts documents processed in this run.
	Succeeded int `json:"succeeded"`

	// Skipped counts documents whose completed artifact was reused.
	Skipped int `json:"skipped"`

	// Failed counts documents that failed after retries. Failures do not
	// abort the run; the documents are excluded from later stages.
	Failed int `json:"failed"`

	Failures []DocumentFailure `json:"failures,omitempty"`

	// Index carries upsert counts when Stage is StageIndex.
	Index *IndexReport `json:"index,omitempty"`
}

// Partial reports whether the run completed with some documents failed.
func (r *StageReport) Partial() bool {
	return r.Failed > 0
}

// IndexReport counts the outcome of upserting embedding records into the
// vector store.
type IndexReport struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`

	Failures []DocumentFailure `json:"failures,omitempty"`
}
