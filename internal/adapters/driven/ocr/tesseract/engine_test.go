package tesseract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func TestEngine_Supports(t *testing.T) {
	e := New(Config{})

	assert.True(t, e.Supports("scan.pdf"))
	assert.True(t, e.Supports("SCAN.PDF"))
	assert.True(t, e.Supports("page.png"))
	assert.True(t, e.Supports("photo.jpeg"))
	assert.False(t, e.Supports("notes.txt"))
	assert.False(t, e.Supports("doc.docx"))
}

func TestEngine_Defaults(t *testing.T) {
	e := New(Config{})

	assert.Equal(t, "tesseract", e.tesseract)
	assert.Equal(t, "pdftoppm", e.pdftoppm)
	assert.Equal(t, "eng", e.languages)
	assert.Equal(t, DefaultDPI, e.dpi)
	assert.Equal(t, DefaultPageTimeout, e.pageTimeout)
}

func TestEngine_UnreadableInput(t *testing.T) {
	// Point at a binary that cannot exist so the exec fails fast.
	e := New(Config{TesseractPath: "/nonexistent/tesseract", PageTimeout: time.Second})

	_, err := e.ExtractPages(context.Background(), "missing.png")
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}
