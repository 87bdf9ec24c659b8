package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"patentlint/internal/claims"
	"patentlint/pkg/models"
)

func TestValidatePDFFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "US1.pdf")
	empty := filepath.Join(dir, "empty.pdf")
	os.WriteFile(good, []byte("%PDF-1.4"), 0o644)
	os.WriteFile(empty, nil, 0o644)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"valid", good, ""},
		{"missing", filepath.Join(dir, "nope.pdf"), "not found"},
		{"directory", dir, "not a regular file"},
		{"empty", empty, "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validatePDFFile(tt.path, zerolog.Nop())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCollectPDFFiles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "2024")
	os.MkdirAll(nested, 0o755)
	for _, p := range []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(nested, "b.PDF"),
	} {
		os.WriteFile(p, []byte("x"), 0o644)
	}
	single := filepath.Join(t.TempDir(), "c.pdf")
	os.WriteFile(single, []byte("x"), 0o644)

	got, err := collectPDFFiles([]string{dir, single}, zerolog.Nop())
	if err != nil {
		t.Fatalf("collectPDFFiles() error = %v", err)
	}
	want := []string{filepath.Join(nested, "b.PDF"), filepath.Join(dir, "a.pdf"), single}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("collectPDFFiles() = %v, want %v", got, want)
	}

	overlapping := []string{dir, filepath.Join(dir, "a.pdf"), single, filepath.Join(filepath.Dir(single), ".", "c.pdf"), dir}
	got, err = collectPDFFiles(overlapping, zerolog.Nop())
	if err != nil {
		t.Fatalf("collectPDFFiles() error = %v", err)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("collectPDFFiles(overlapping) = %v, want %v", got, want)
	}

	if _, err := collectPDFFiles([]string{filepath.Join(dir, "missing")}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := writeOutput([]byte("claims"), path, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); string(data) != "claims" {
		t.Fatalf("file content = %q", data)
	}
}

func TestFormatAnalyses(t *testing.T) {
	out := formatAnalyses([]AnalyzeResult{
		{File: "bad.pdf", Error: "cannot open PDF document"},
		{File: "good.pdf", Analysis: &models.PatentAnalysis{
			TotalPages:     12,
			ExtractionPath: "ocr",
			ClaimCount:     3,
			Model:          "test-model",
			Results:        []models.PromptResult{{Name: "antecedent_issues", Response: " none \n"}},
		}},
	})

	for _, want := range []string{
		"bad.pdf\n",
		"Error: cannot open PDF document\n",
		"Pages: 12  Extraction: ocr  Claims: 3  Model: test-model\n",
		"--- antecedent_issues ---\nnone\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatClaimsText(t *testing.T) {
	out := ClaimsOutput{
		Claims:   "1. A widget.\n2. The widget of\nclaim 1.",
		Items:    claims.Split("1. A widget.\n2. The widget of\nclaim 1."),
		Metadata: &claims.Metadata{Title: "Widget", Inventor: "J. Doe"},
		Sections: map[string]string{
			claims.SectionSummary:    "A widget.",
			claims.SectionBackground: "Widgets exist.",
		},
	}

	got := formatClaimsText(out)
	want := "Title: Widget\nInventor: J. Doe\n\n" +
		"== Background of the Invention ==\nWidgets exist.\n\n" +
		"== Summary of the Invention ==\nA widget.\n\n" +
		"1. A widget.\n2. The widget of claim 1."
	if got != want {
		t.Fatalf("formatClaimsText() =\n%q\nwant\n%q", got, want)
	}
}
