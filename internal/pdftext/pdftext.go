// Package pdftext pulls embedded (non-rasterized) text out of PDF pages.
//
// Pages are addressed by 0-based index here. OCR page selection elsewhere in the
// module is 1-based; callers convert at the boundary and never mix the two.
package pdftext

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"patentlint/internal/logger"
)

// ErrOpenDocument is returned when a PDF cannot be opened or its page tree read.
var ErrOpenDocument = errors.New("cannot open PDF document")

// Document is an opened PDF whose pages are addressed by 0-based index.
type Document interface {
	// PageCount returns the total number of pages.
	PageCount() int

	// PageText returns the embedded text of the page at index.
	PageText(index int) (string, error)

	// Close releases the underlying file.
	Close() error
}

// Opener opens documents by filesystem path.
type Opener interface {
	Open(path string) (Document, error)
}

// ExtractRange joins the embedded text of pages [first, last] (inclusive, 0-based)
// with newlines. Pages without text, or whose content cannot be decoded, contribute
// an empty string so page positions are preserved in the output.
func ExtractRange(doc Document, first, last int, log zerolog.Logger) string {
	if first < 0 {
		first = 0
	}
	if n := doc.PageCount(); last > n-1 {
		last = n - 1
	}
	if last < first {
		return ""
	}

	chunks := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		text, err := doc.PageText(i)
		if err != nil {
			log.Debug().
				Err(err).
				Int("page_index", i).
				Msg("No embedded text on page")
			text = ""
		}
		chunks = append(chunks, text)
	}
	return strings.Join(chunks, "\n")
}

// Reader opens PDFs with github.com/ledongthuc/pdf.
type Reader struct {
	log zerolog.Logger
}

// NewReader creates a Reader.
func NewReader() *Reader {
	return &Reader{log: logger.WithComponent("pdftext")}
}

// Open opens the PDF at path. Any failure is wrapped in ErrOpenDocument.
func (r *Reader) Open(path string) (doc Document, err error) {
	const op = "Open"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s: %v", op, ErrOpenDocument, path, err)
	}

	// the parser panics on some malformed cross-reference tables
	defer func() {
		if p := recover(); p != nil {
			doc = nil
			err = fmt.Errorf("%s: %w: %s: %v", op, ErrOpenDocument, path, p)
		}
		if err != nil {
			f.Close()
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s: %v", op, ErrOpenDocument, path, err)
	}
	reader, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s: %v", op, ErrOpenDocument, path, err)
	}

	r.log.Debug().
		Str("document", path).
		Int("pages", reader.NumPage()).
		Msg("Opened PDF")

	return &pdfDocument{file: f, reader: reader}, nil
}

type pdfDocument struct {
	file   *os.File
	reader *pdf.Reader
}

func (d *pdfDocument) PageCount() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) PageText(index int) (text string, err error) {
	if index < 0 || index >= d.reader.NumPage() {
		return "", fmt.Errorf("page index %d out of range [0, %d)", index, d.reader.NumPage())
	}

	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = fmt.Errorf("decode page %d: %v", index, p)
		}
	}()

	// ledongthuc/pdf numbers pages from 1
	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", nil
	}
	return pageLines(page.Content().Text), nil
}

func (d *pdfDocument) Close() error {
	return d.file.Close()
}
