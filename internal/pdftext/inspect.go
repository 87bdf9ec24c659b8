package pdftext

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Info describes a PDF on disk as seen by pdfcpu.
type Info struct {
	Path      string `json:"path"`
	Size      int64  `json:"size_bytes"`
	PageCount int    `json:"page_count"`

	// Valid reports whether the file passes pdfcpu's relaxed validation. Many
	// scanned patents fail strict validation yet still extract fine.
	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
}

// Inspect counts pages and validates the PDF at path.
// A file that cannot be read as a PDF at all is reported as ErrOpenDocument.
func Inspect(path string) (*Info, error) {
	const op = "Inspect"

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrOpenDocument, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrOpenDocument, err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: page count: %v", op, ErrOpenDocument, err)
	}

	info := &Info{
		Path:      path,
		Size:      fi.Size(),
		PageCount: pageCount,
		Valid:     true,
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		info.Valid = false
		info.ValidationError = err.Error()
	}

	return info, nil
}
