// Package pdftext turns PDF bytes into plain text. It reads the embedded
// text layer first and falls back to rasterizing pages and running OCR when
// the layer carries no meaningful text.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Method records which stage produced a Result.
type Method string

const (
	MethodText Method = "text"
	MethodOCR  Method = "ocr"
)

// DefaultMaxPages bounds how many pages are rasterized for OCR.
const DefaultMaxPages = 10

const minMeaningfulRunes = 30

// ErrNoText is returned when the text layer is empty and no OCR stage is configured.
var ErrNoText = errors.New("pdf has no extractable text and OCR is not configured")

var pageMarker = regexp.MustCompile(`--\s*\d+\s*of\s*\d+\s*--`)

// TextLayer reads the embedded text of a PDF. pages is 0 when unknown.
type TextLayer interface {
	Extract(data []byte) (text string, pages int, err error)
}

// Rasterizer renders up to maxPages pages of the PDF at pdfPath into image
// files under outDir and returns their paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string, maxPages int) ([]string, error)
}

// Recognizer runs OCR over a single page image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Result is the outcome of an extraction.
type Result struct {
	Text   string
	Method Method
	Pages  int
}

// Extractor runs the text-layer → OCR state machine.
type Extractor struct {
	layer    TextLayer
	raster   Rasterizer
	ocr      Recognizer
	maxPages int
	tempDir  string
	logger   *slog.Logger
}

// New creates an Extractor. raster and ocr may be nil, in which case PDFs
// without a usable text layer fail with ErrNoText. A nil logger means
// slog.Default().
func New(layer TextLayer, raster Rasterizer, ocr Recognizer, maxPages int, logger *slog.Logger) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{layer: layer, raster: raster, ocr: ocr, maxPages: maxPages, logger: logger}
}

// Meaningful reports whether text has enough content once page markers and
// whitespace are removed.
func Meaningful(text string) bool {
	stripped := pageMarker.ReplaceAllString(text, "")
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, stripped)
	return utf8.RuneCountInString(stripped) >= minMeaningfulRunes
}

// Extract returns the text of the PDF in data.
func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	text, pages, err := e.layer.Extract(data)
	if err == nil && Meaningful(text) {
		return Result{Text: strings.TrimSpace(text), Method: MethodText, Pages: pages}, nil
	}
	if err != nil {
		e.logger.Debug("pdf text layer unreadable, falling back to OCR", "error", err)
	}
	if e.raster == nil || e.ocr == nil {
		if err != nil {
			return Result{}, fmt.Errorf("reading text layer: %w", err)
		}
		return Result{}, ErrNoText
	}
	return e.recognize(ctx, data, pages)
}

func (e *Extractor) recognize(ctx context.Context, data []byte, pages int) (Result, error) {
	dir, err := os.MkdirTemp(e.tempDir, "attune-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("creating OCR work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("writing pdf for OCR: %w", err)
	}

	images, err := e.raster.Rasterize(ctx, pdfPath, dir, e.maxPages)
	if err != nil {
		return Result{}, fmt.Errorf("rasterizing pdf: %w", err)
	}
	if len(images) == 0 {
		return Result{}, errors.New("rasterizing pdf: no pages rendered")
	}
	if len(images) > e.maxPages {
		images = images[:e.maxPages]
	}

	total := max(pages, len(images))
	segments := make([]string, 0, len(images))
	for i, path := range images {
		img, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("reading page image %d: %w", i+1, err)
		}
		text, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			return Result{}, fmt.Errorf("recognizing page %d: %w", i+1, err)
		}
		segments = append(segments, fmt.Sprintf("-- Page %d of %d --\n%s", i+1, total, strings.TrimSpace(text)))
	}

	return Result{Text: strings.Join(segments, "\n\n"), Method: MethodOCR, Pages: total}, nil
}
