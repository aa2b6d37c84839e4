package domain

import (
	"path/filepath"
	"strings"
)

// PageBreak separates per-page text in extraction output. Cleansing
// segmentation splits on it and drops it, so the marker does not
// survive into cleansed text.
const PageBreak = "\n\n--- page break ---\n\n"

// Document represents one source file within a collection.
// Documents are immutable once ingested; re-running a stage replaces the
// prior artifact for the same identifier.
type Document struct {
	// ID is the stable identifier derived from the source filename.
	ID string

	// Collection is the name of the collection the document belongs to.
	Collection string

	// SourcePath is the absolute path of the source file.
	SourcePath string
}

// DeriveDocumentID produces the stable document identifier for a source
// file. The identifier is the base filename without extension, lowercased,
// with runs of unsafe characters collapsed to a single hyphen. Deriving
// from the filename keeps re-ingestion idempotent: the same file always
// maps to the same identifier.
func DeriveDocumentID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)

	var b strings.Builder
	b.Grow(len(base))
	lastHyphen := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
