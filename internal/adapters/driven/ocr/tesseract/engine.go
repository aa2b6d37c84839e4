// Package tesseract provides an OCR engine adapter that shells out to
// the tesseract binary, rasterising PDFs with poppler's pdftoppm first.
// These are the same external tools the scanned-document workflow has
// always relied on; the engine treats them as a black box.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Default configuration values.
const (
	DefaultTesseractPath = "tesseract"
	DefaultPdftoppmPath  = "pdftoppm"
	DefaultLanguages     = "eng"
	DefaultDPI           = 300
	DefaultPageTimeout   = 2 * time.Minute
)

// imageExts lists directly OCR-able image extensions.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// Config holds configuration for the tesseract engine.
type Config struct {
	// TesseractPath is the tesseract binary (default: tesseract on PATH).
	TesseractPath string

	// PdftoppmPath is the poppler pdftoppm binary (default: pdftoppm on PATH).
	PdftoppmPath string

	// Languages is the tesseract language spec, e.g. "eng" or "ind+eng".
	Languages string

	// DPI is the rasterisation resolution for PDFs (default: 300).
	DPI int

	// PageTimeout bounds each external call (default: 2m).
	PageTimeout time.Duration
}

// Engine runs OCR over PDFs and images via external binaries.
type Engine struct {
	tesseract   string
	pdftoppm    string
	languages   string
	dpi         int
	pageTimeout time.Duration
}

// New creates a tesseract OCR engine.
func New(cfg Config) *Engine {
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = DefaultTesseractPath
	}
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = DefaultPdftoppmPath
	}
	if cfg.Languages == "" {
		cfg.Languages = DefaultLanguages
	}
	if cfg.DPI == 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}

	return &Engine{
		tesseract:   cfg.TesseractPath,
		pdftoppm:    cfg.PdftoppmPath,
		languages:   cfg.Languages,
		dpi:         cfg.DPI,
		pageTimeout: cfg.PageTimeout,
	}
}

// Name identifies the engine.
func (e *Engine) Name() string {
	return "tesseract"
}

// Supports reports whether the file is a PDF or a known image format.
func (e *Engine) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || imageExts[ext]
}

// ExtractPages runs OCR on each page of the document.
func (e *Engine) ExtractPages(ctx context.Context, path string) ([]driven.Page, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return e.extractPDF(ctx, path)
	}

	text, err := e.runTesseract(ctx, path)
	if err != nil {
		return nil, err
	}
	return []driven.Page{{Number: 1, Text: text}}, nil
}

// extractPDF rasterises the PDF with pdftoppm and OCRs each page image.
func (e *Engine) extractPDF(ctx context.Context, path string) ([]driven.Page, error) {
	tmpDir, err := os.MkdirTemp("", "corpus-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating raster directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	rasterCtx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	//nolint:gosec // binary path and DPI come from operator configuration
	cmd := exec.CommandContext(rasterCtx, e.pdftoppm,
		"-png",
		"-r", fmt.Sprintf("%d", e.dpi),
		path,
		filepath.Join(tmpDir, "page"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, e.wrapExecErr(rasterCtx, "pdftoppm", err, out)
	}

	images, err := filepath.Glob(filepath.Join(tmpDir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("listing raster pages: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no pages for %s", domain.ErrUnreadableDocument, filepath.Base(path))
	}
	sort.Strings(images)

	pages := make([]driven.Page, 0, len(images))
	for i, img := range images {
		text, err := e.runTesseract(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, driven.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

// runTesseract OCRs a single image to stdout.
func (e *Engine) runTesseract(ctx context.Context, imagePath string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	//nolint:gosec // binary path and languages come from operator configuration
	cmd := exec.CommandContext(callCtx, e.tesseract, imagePath, "stdout", "-l", e.languages)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", e.wrapExecErr(callCtx, "tesseract", err, []byte(stderr.String()))
	}
	return string(out), nil
}

// wrapExecErr maps external tool failures onto the error taxonomy:
// deadline hits become timeouts, everything else is an unreadable input.
func (e *Engine) wrapExecErr(ctx context.Context, tool string, err error, output []byte) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", domain.ErrTimeout, tool)
	}
	msg := strings.TrimSpace(string(output))
	if msg == "" {
		msg = err.Error()
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrUnreadableDocument, tool, msg)
}
