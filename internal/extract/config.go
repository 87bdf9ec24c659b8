package extract

import (
	"fmt"
	"time"

	"patentlint/internal/raster"
)

// Config controls the tail extraction pipeline. Every field has a documented
// default from DefaultConfig; the orchestrator never reads the environment.
type Config struct {
	// TailTextPages is how many trailing pages the embedded-text pass reads. Default 20.
	TailTextPages int

	// TailOCRPages is how many trailing pages are rasterized and OCRed when the
	// embedded-text pass finds too little text. Default 20.
	TailOCRPages int

	// DPI is the rasterization resolution. Default 200.
	DPI int

	// OCRTimeout bounds recognition of a single page. Default 25s.
	OCRTimeout time.Duration

	// Language is the OCR language code. Default "eng".
	Language string

	// PageSegMode is the Tesseract page segmentation mode. Default 6.
	PageSegMode int

	// MinTextChars is the trimmed character count below which embedded text is
	// treated as unusable. Default 50.
	MinTextChars int

	// CacheSuffix replaces the source file's extension to form the cache
	// artifact path. Default ".tail.txt".
	CacheSuffix string
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		TailTextPages: 20,
		TailOCRPages:  20,
		DPI:           200,
		OCRTimeout:    25 * time.Second,
		Language:      "eng",
		PageSegMode:   6,
		MinTextChars:  50,
		CacheSuffix:   ".tail.txt",
	}
}

// Validate reports settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.TailTextPages < 1:
		return fmt.Errorf("tail text pages must be at least 1, got %d", c.TailTextPages)
	case c.TailOCRPages < 1:
		return fmt.Errorf("tail OCR pages must be at least 1, got %d", c.TailOCRPages)
	case c.DPI < 1:
		return fmt.Errorf("OCR DPI must be positive, got %d", c.DPI)
	case c.OCRTimeout <= 0:
		return fmt.Errorf("OCR timeout must be positive, got %s", c.OCRTimeout)
	case c.MinTextChars < 0:
		return fmt.Errorf("minimum text characters must not be negative, got %d", c.MinTextChars)
	case c.CacheSuffix == "":
		return fmt.Errorf("cache suffix must not be empty")
	}
	return nil
}

// TextWindow is an inclusive, 0-indexed page range for embedded-text access.
type TextWindow struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// TextWindowFor returns the last tail pages of a document with totalPages pages,
// 0-indexed, with the start clamped at 0.
func TextWindowFor(totalPages, tail int) TextWindow {
	return TextWindow{
		First: max(0, totalPages-tail),
		Last:  totalPages - 1,
	}
}

// OCRWindowFor returns the last tail pages of a document with totalPages pages,
// 1-indexed, with the start clamped at 1.
func OCRWindowFor(totalPages, tail int) raster.Window {
	return raster.Window{
		First: max(1, totalPages-tail+1),
		Last:  totalPages,
	}
}
