package raster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakePdftoppm writes a shell script that mimics pdftoppm -singlefile by touching
// "<prefix><ext>".
func fakePdftoppm(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "pdftoppm")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPopplerRenderPagesOrder(t *testing.T) {
	bin := fakePdftoppm(t, `for last; do :; done; touch "$last.jpg"`)
	outDir := t.TempDir()

	r := NewPoppler(Options{Binary: bin, Workers: 3})
	pages, err := r.RenderPages(context.Background(), "doc.pdf", Window{First: 4, Last: 9}, 200, outDir)
	if err != nil {
		t.Fatalf("RenderPages() error = %v", err)
	}
	if len(pages) != 6 {
		t.Fatalf("expected 6 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Number != 4+i {
			t.Fatalf("page %d has number %d, want %d", i, p.Number, 4+i)
		}
		if _, err := os.Stat(p.Path); err != nil {
			t.Fatalf("page image missing: %v", err)
		}
		if filepath.Dir(p.Path) != outDir {
			t.Fatalf("page written outside outDir: %s", p.Path)
		}
	}
}

func TestPopplerRenderPagesPNG(t *testing.T) {
	bin := fakePdftoppm(t, `for last; do :; done; touch "$last.png"`)

	r := NewPoppler(Options{Binary: bin, Format: FormatPNG})
	pages, err := r.RenderPages(context.Background(), "doc.pdf", Window{First: 1, Last: 1}, 150, t.TempDir())
	if err != nil {
		t.Fatalf("RenderPages() error = %v", err)
	}
	if filepath.Ext(pages[0].Path) != ".png" {
		t.Fatalf("unexpected extension: %s", pages[0].Path)
	}
}

func TestPopplerRenderPagesFailure(t *testing.T) {
	bin := fakePdftoppm(t, `echo "Syntax Error: broken xref" >&2; exit 1`)

	r := NewPoppler(Options{Binary: bin})
	_, err := r.RenderPages(context.Background(), "doc.pdf", Window{First: 1, Last: 2}, 200, t.TempDir())
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
}

func TestPopplerRenderPagesInvalidWindow(t *testing.T) {
	r := NewPoppler(Options{})
	if _, err := r.RenderPages(context.Background(), "doc.pdf", Window{First: 0, Last: 3}, 200, t.TempDir()); err == nil {
		t.Fatal("expected error for window starting at page 0")
	}
	if _, err := r.RenderPages(context.Background(), "doc.pdf", Window{First: 5, Last: 4}, 200, t.TempDir()); err == nil {
		t.Fatal("expected error for empty window")
	}
}

func TestWithTempDirCleanup(t *testing.T) {
	var seen string
	err := WithTempDir("raster-test-*", func(dir string) error {
		seen = dir
		return os.WriteFile(filepath.Join(dir, "page.jpg"), []byte("x"), 0o644)
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Fatalf("temp dir not removed after success: %v", err)
	}

	boom := errors.New("ocr failed")
	err = WithTempDir("raster-test-*", func(dir string) error {
		seen = dir
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Fatalf("temp dir not removed after error: %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = WithTempDir("raster-test-*", func(dir string) error {
			seen = dir
			panic("engine crashed")
		})
	}()
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Fatalf("temp dir not removed after panic: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJPEG, false},
		{"jpeg", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"png", FormatPNG, false},
		{"tiff", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWindowLen(t *testing.T) {
	if n := (Window{First: 1, Last: 20}).Len(); n != 20 {
		t.Fatalf("Len = %d, want 20", n)
	}
	if n := (Window{First: 3, Last: 2}).Len(); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}
