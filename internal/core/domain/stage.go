package domain

// Stage identifies one step of the processing pipeline. Each batch stage
// persists its output per document in the artifact store; later stages
// discover their input by listing the previous stage's completed set.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtract Stage = "extract"
	StageCleanse Stage = "cleanse"
	StageChunk   Stage = "chunk"
	StageEmbed   Stage = "embed"
	StageIndex   Stage = "index"
)

// BatchStages returns the batch stages in execution order.
// The retrieval-and-answer flow is not a batch stage; it runs
// interactively against the indexed collection.
func BatchStages() []Stage {
	return []Stage{StageExtract, StageCleanse, StageChunk, StageEmbed, StageIndex}
}

// IsValid reports whether s names a known pipeline stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageExtract, StageCleanse, StageChunk, StageEmbed, StageIndex:
		return true
	}
	return false
}

// Previous returns the stage whose artifacts this stage consumes.
// The extract stage has no predecessor and returns "".
func (s Stage) Previous() Stage {
	stages := BatchStages()
	for i, st := range stages {
		if st == s && i > 0 {
			return stages[i-1]
		}
	}
	return ""
}

// StageState is the processing state of one document at one stage.
type StageState string

// Document stage states.
const (
	// StateDone means the stage completed and its artifact is readable.
	StateDone StageState = "done"

	// StateFailed means the stage failed for this document after retries.
	// The document is excluded from later stages until re-run.
	StateFailed StageState = "failed"

	// StateSkipped means a prior completed artifact was reused.
	StateSkipped StageState = "skipped"
)
