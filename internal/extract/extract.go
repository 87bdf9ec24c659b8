// Package extract produces the full text of a patent PDF's trailing pages.
//
// Claims sit at the end of a patent, so only a bounded tail is read. The fast
// path pulls embedded text from the last TailTextPages pages. When that yields
// fewer than MinTextChars trimmed characters the slow path rasterizes the last
// TailOCRPages pages into a scoped temp directory and OCRs them one at a time.
// The final text is written to a sidecar cache file next to the source, replacing
// any earlier one.
//
// The embedded-text window is 0-indexed and the OCR window is 1-indexed, matching
// the addressing of the PDF reader and of pdftoppm respectively.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"patentlint/internal/logger"
	"patentlint/internal/ocr"
	"patentlint/internal/pdftext"
	"patentlint/internal/raster"
)

// ErrCacheWrite is returned when the cache artifact cannot be written.
var ErrCacheWrite = errors.New("cannot write extraction cache")

// Path records which branch produced the text.
type Path string

const (
	FastPath Path = "embedded-text"
	SlowPath Path = "ocr"
)

// Result is the outcome of one extraction run.
type Result struct {
	Text       string         `json:"text"`
	Path       Path           `json:"path"`
	TotalPages int            `json:"total_pages"`
	TextWindow TextWindow     `json:"text_window"`
	OCRWindow  *raster.Window `json:"ocr_window,omitempty"`
	Engine     string         `json:"engine,omitempty"`
	Failures   []ocr.Failure  `json:"ocr_failures,omitempty"`
	CachePath  string         `json:"cache_path"`
	Duration   time.Duration  `json:"duration"`
}

// Observer receives pipeline events, e.g. for metrics.
type Observer interface {
	ExtractionFinished(path Path, duration time.Duration)
	OCRPageFinished(engine string, failure *ocr.Failure, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ExtractionFinished(Path, time.Duration) {}

func (nopObserver) OCRPageFinished(string, *ocr.Failure, time.Duration) {}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(e *Extractor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Extractor) {
		e.log = log
	}
}

// Extractor runs the tail extraction pipeline. It holds no per-document state
// and may be shared, but concurrent runs on the same document race on the cache
// file (last writer wins).
type Extractor struct {
	cfg      Config
	opener   pdftext.Opener
	renderer raster.Renderer
	engine   ocr.Engine
	observer Observer
	log      zerolog.Logger
}

// New creates an Extractor from its collaborators.
func New(cfg Config, opener pdftext.Opener, renderer raster.Renderer, engine ocr.Engine, opts ...Option) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extraction config: %w", err)
	}
	e := &Extractor{
		cfg:      cfg,
		opener:   opener,
		renderer: renderer,
		engine:   engine,
		observer: nopObserver{},
		log:      logger.WithComponent("extract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractText runs Extract and returns only the text.
func (e *Extractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	res, err := e.Extract(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Extract reads the tail of the PDF at pdfPath, falling back to OCR when the
// embedded text is unusable, and persists the text to the cache artifact.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) (*Result, error) {
	const op = "Extract"
	start := time.Now()
	log := e.log.With().Str("document", pdfPath).Logger()

	doc, err := e.opener.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	totalPages := doc.PageCount()
	textWindow := TextWindowFor(totalPages, e.cfg.TailTextPages)
	fullText := pdftext.ExtractRange(doc, textWindow.First, textWindow.Last, log)
	if err := doc.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close PDF")
	}

	result := &Result{
		Path:       FastPath,
		TotalPages: totalPages,
		TextWindow: textWindow,
		CachePath:  CachePath(pdfPath, e.cfg.CacheSuffix),
	}

	usable := utf8.RuneCountInString(strings.TrimSpace(fullText))
	log.Info().
		Int("total_pages", totalPages).
		Int("first_index", textWindow.First).
		Int("last_index", textWindow.Last).
		Int("usable_chars", usable).
		Msg("Embedded text pass finished")

	if usable < e.cfg.MinTextChars {
		result.Path = SlowPath
		fullText, err = e.ocrTail(ctx, pdfPath, totalPages, result, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	result.Text = fullText
	if err := os.WriteFile(result.CachePath, []byte(fullText), 0o644); err != nil {
		return nil, fmt.Errorf("%s: %w: %s: %v", op, ErrCacheWrite, result.CachePath, err)
	}

	result.Duration = time.Since(start)
	e.observer.ExtractionFinished(result.Path, result.Duration)

	log.Info().
		Str("path", string(result.Path)).
		Int("text_length", len(fullText)).
		Int("ocr_failures", len(result.Failures)).
		Str("cache", result.CachePath).
		Dur("duration", result.Duration).
		Msg("Extraction completed")

	return result, nil
}

// ocrTail rasterizes and recognizes the OCR window, filling the OCR fields of result.
func (e *Extractor) ocrTail(ctx context.Context, pdfPath string, totalPages int, result *Result, log zerolog.Logger) (string, error) {
	window := OCRWindowFor(totalPages, e.cfg.TailOCRPages)
	result.OCRWindow = &window
	result.Engine = e.engine.Name()

	if window.Len() == 0 {
		log.Warn().Msg("Document has no pages to OCR")
		return "", nil
	}

	log.Info().
		Int("first_page", window.First).
		Int("last_page", window.Last).
		Int("dpi", e.cfg.DPI).
		Str("engine", e.engine.Name()).
		Msg("No readable text found in tail, falling back to OCR")

	opts := ocr.Options{
		Language:    e.cfg.Language,
		PageSegMode: e.cfg.PageSegMode,
		DPI:         e.cfg.DPI,
	}

	var results []ocr.PageResult
	err := raster.WithTempDir("patentlint-ocr-*", func(dir string) error {
		pages, err := e.renderer.RenderPages(ctx, pdfPath, window, e.cfg.DPI, dir)
		if err != nil {
			return err
		}

		results = make([]ocr.PageResult, 0, len(pages))
		for _, page := range pages {
			pageStart := time.Now()
			res, err := ocr.RecognizePage(ctx, e.engine, page.Number, page.Path, opts, e.cfg.OCRTimeout)
			if err != nil {
				return err
			}
			e.observer.OCRPageFinished(e.engine.Name(), res.Failure, time.Since(pageStart))
			if res.Failed() {
				log.Warn().
					Int("page", page.Number).
					Str("kind", string(res.Failure.Kind)).
					Str("detail", res.Failure.Detail).
					Msg("OCR failed for page")
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	result.Failures = ocr.Failures(results)
	return ocr.Render(results), nil
}

// CachePath derives the sidecar cache path by replacing the final extension of
// pdfPath with suffix: "dir/US123.pdf" becomes "dir/US123.tail.txt".
func CachePath(pdfPath, suffix string) string {
	base := filepath.Base(pdfPath)
	ext := filepath.Ext(base)
	if ext == base {
		// dotfile such as ".pdf" has no extension to replace
		ext = ""
	}
	return strings.TrimSuffix(pdfPath, ext) + suffix
}
