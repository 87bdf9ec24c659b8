// Package ocr recognizes text on single rasterized page images.
//
// Three engines are available:
//   - tesseract: local Tesseract through gosseract (default, needs libtesseract)
//   - vision: Google Cloud Vision document text detection
//   - documentai: a Google Document AI OCR processor
//
// Recognition of a page is bounded by a hard timeout. Timeouts and engine
// processing errors do not fail a batch: RecognizePage turns them into a typed
// Failure on the PageResult, and Render writes a marker for the failed page into
// the text stream. Any other error (a missing image file, bad credentials, a
// cancelled parent context) is returned to the caller.
//
// Required Environment Variables for the Google engines:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION, DOCUMENT_AI_PROCESSOR_ID (documentai only)
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Engine names accepted by NewEngine.
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// Engine recognizes text in one image file.
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Recognize returns the text found in the image at imagePath. Implementations
	// must return promptly once ctx is done. Processing failures specific to the
	// engine wrap ErrEngine.
	Recognize(ctx context.Context, imagePath string, opts Options) (string, error)

	// Close releases engine resources.
	Close() error
}

// Options are per-call recognition settings.
type Options struct {
	// Language is an engine language code, e.g. "eng" for Tesseract. Multiple
	// languages may be joined with "+".
	Language string

	// PageSegMode is the Tesseract page segmentation mode (6 = single uniform block).
	PageSegMode int

	// DPI is the resolution the image was rendered at; 0 leaves it to the engine.
	DPI int
}

// FailureKind classifies a contained per-page OCR failure.
type FailureKind string

const (
	FailureTimeout FailureKind = "timeout"
	FailureEngine  FailureKind = "engine-error"
)

// Failure describes why a page produced no recognized text.
type Failure struct {
	Kind    FailureKind   `json:"kind"`
	Page    int           `json:"page"`
	Timeout time.Duration `json:"timeout,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

// Marker is the text written into the output stream in place of the page text.
func (f Failure) Marker() string {
	switch f.Kind {
	case FailureTimeout:
		return fmt.Sprintf("\n[OCR TIMEOUT page %d after %gs]\n", f.Page, f.Timeout.Seconds())
	default:
		return fmt.Sprintf("\n[OCR ERROR page %d]: %s\n", f.Page, f.Detail)
	}
}

// PageResult is either recognized text or a Failure for a single 1-indexed page.
type PageResult struct {
	Page    int
	Text    string
	Failure *Failure
}

// Failed reports whether the page has no recognized text.
func (r PageResult) Failed() bool {
	return r.Failure != nil
}

// Render returns the text contributed by this page to the document output.
func (r PageResult) Render() string {
	if r.Failure != nil {
		return r.Failure.Marker()
	}
	return r.Text
}

// Render joins page results with newlines in the order given.
func Render(results []PageResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Render()
	}
	return strings.Join(parts, "\n")
}

// Failures returns the failures among results, in page order.
func Failures(results []PageResult) []Failure {
	var out []Failure
	for _, r := range results {
		if r.Failure != nil {
			out = append(out, *r.Failure)
		}
	}
	return out
}
