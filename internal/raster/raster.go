// Package raster renders PDF pages to image files on disk.
//
// Images are written to a caller-provided directory and only their paths are
// returned, so decoded pixels are never held in memory. Pages are numbered from 1,
// matching poppler's addressing.
package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"patentlint/internal/logger"
)

// ErrRenderFailed is returned when a page could not be rasterized.
var ErrRenderFailed = errors.New("page rasterization failed")

// Format is the output image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Extension returns the file extension pdftoppm uses for the format.
func (f Format) Extension() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// ParseFormat maps a configuration string to a Format, defaulting to JPEG.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported raster format %q", s)
	}
}

// Window is an inclusive, 1-indexed page range.
type Window struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Len returns the number of pages in the window.
func (w Window) Len() int {
	if w.Last < w.First {
		return 0
	}
	return w.Last - w.First + 1
}

// Page is one rendered page image.
type Page struct {
	Number int
	Path   string
}

// Renderer rasterizes a page window of a PDF into outDir.
// Returned pages are in ascending page order.
type Renderer interface {
	RenderPages(ctx context.Context, pdfPath string, window Window, dpi int, outDir string) ([]Page, error)
}

// Options configures the poppler renderer.
type Options struct {
	Format  Format
	Workers int
	Binary  string
}

// DefaultOptions returns JPEG output with 2 workers using pdftoppm from PATH.
func DefaultOptions() Options {
	return Options{
		Format:  FormatJPEG,
		Workers: 2,
		Binary:  "pdftoppm",
	}
}

// Poppler renders pages by invoking pdftoppm (poppler-utils), one process per page.
type Poppler struct {
	opts Options
	log  zerolog.Logger
}

// NewPoppler creates a pdftoppm-backed renderer. Zero-valued options fall back to defaults.
func NewPoppler(opts Options) *Poppler {
	def := DefaultOptions()
	if opts.Format == "" {
		opts.Format = def.Format
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Binary == "" {
		opts.Binary = def.Binary
	}
	return &Poppler{opts: opts, log: logger.WithComponent("raster")}
}

// RenderPages renders every page in window to outDir at the given DPI.
func (p *Poppler) RenderPages(ctx context.Context, pdfPath string, window Window, dpi int, outDir string) ([]Page, error) {
	const op = "RenderPages"

	if window.First < 1 || window.Len() == 0 {
		return nil, fmt.Errorf("%s: invalid page window %d-%d", op, window.First, window.Last)
	}

	p.log.Debug().
		Str("document", pdfPath).
		Int("first_page", window.First).
		Int("last_page", window.Last).
		Int("dpi", dpi).
		Str("format", string(p.opts.Format)).
		Int("workers", p.opts.Workers).
		Msg("Rendering pages")

	pages := make([]Page, window.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for n := window.First; n <= window.Last; n++ {
		pageNum := n
		g.Go(func() error {
			path, err := p.renderPage(gctx, pdfPath, pageNum, dpi, outDir)
			if err != nil {
				return err
			}
			pages[pageNum-window.First] = Page{Number: pageNum, Path: path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// renderPage renders a single page with pdftoppm -singlefile, so the output name is predictable.
func (p *Poppler) renderPage(ctx context.Context, pdfPath string, pageNum, dpi int, outDir string) (string, error) {
	prefix := filepath.Join(outDir, fmt.Sprintf("page_%04d", pageNum))
	pageStr := strconv.Itoa(pageNum)

	cmd := exec.CommandContext(ctx, p.opts.Binary,
		"-"+string(p.opts.Format),
		"-r", strconv.Itoa(dpi),
		"-f", pageStr,
		"-l", pageStr,
		"-singlefile",
		pdfPath,
		prefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %v (output: %s)", ErrRenderFailed, pageNum, err, string(output))
	}

	path := prefix + p.opts.Format.Extension()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: page %d: expected output missing: %v", ErrRenderFailed, pageNum, err)
	}
	return path, nil
}

// WithTempDir creates a scratch directory, passes it to fn, and removes it on every
// exit path, including panics propagating out of fn.
func WithTempDir(pattern string, fn func(dir string) error) error {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	return fn(dir)
}
