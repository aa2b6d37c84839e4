package driven

import "context"

// Page is the extracted text of one document page.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the raw extracted text for the page.
	Text string
}

// OCREngine extracts raw text from a source document. The engine is a
// black box to the pipeline: image in, text out.
//
// Implementations may include:
//   - PDF text-layer extraction (no OCR needed)
//   - Tesseract over rasterised pages
type OCREngine interface {
	// Name identifies the engine in logs and error messages.
	Name() string

	// Supports reports whether the engine can handle the given file,
	// judged by its path (extension).
	Supports(path string) bool

	// ExtractPages extracts per-page text from the document at path.
	// Unreadable or unsupported input is reported as
	// domain.ErrUnreadableDocument.
	ExtractPages(ctx context.Context, path string) ([]Page, error)
}
