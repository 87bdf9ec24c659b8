package sheets

import (
	"strings"
	"testing"
	"unicode/utf8"

	"patentlint/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	if err != nil || id != "1AbC-d_9" {
		t.Fatalf("extractSpreadsheetID() = %q, %v", id, err)
	}

	if _, err := extractSpreadsheetID("https://example.com/not-a-sheet"); err == nil {
		t.Fatal("expected error for non-sheet URL")
	}
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{1: "A", 13: "M", 26: "Z", 27: "AA", 52: "AZ", 53: "BA", 702: "ZZ", 703: "AAA"}
	for n, want := range tests {
		if got := columnLetter(n); got != want {
			t.Errorf("columnLetter(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestAnalysisRowMatchesHeader(t *testing.T) {
	prompts := []string{"antecedent_issues", "semantic_ambiguity", "agency_and_control"}
	a := &models.PatentAnalysis{
		FileName:       "uploads/US1234567B2.pdf",
		TotalPages:     42,
		ExtractionPath: "ocr",
		ClaimCount:     20,
		Results: []models.PromptResult{
			{Name: "semantic_ambiguity", Response: "Flag 'about'."},
			{Name: "antecedent_issues", Response: "Claim 3 lacks basis."},
		},
	}

	header := headerRow(prompts)
	row := analysisRow(a, prompts, "2026-01-02 03:04:05")

	if len(header) != len(row) || len(header) != 8 {
		t.Fatalf("header has %d columns, row has %d", len(header), len(row))
	}
	if row[0] != "US1234567B2.pdf" || row[1] != 42 || row[2] != "ocr" || row[3] != 20 {
		t.Fatalf("unexpected leading cells: %v", row[:4])
	}
	if row[4] != "Claim 3 lacks basis." || row[5] != "Flag 'about'." || row[6] != "" {
		t.Fatalf("prompt cells not in column order: %v", row[4:7])
	}
	if row[7] != "2026-01-02 03:04:05" || header[7] != "Processed" {
		t.Fatalf("unexpected trailing cell %v / header %v", row[7], header[7])
	}
}

func TestTruncateCell(t *testing.T) {
	short := "fits"
	if truncateCell(short) != short {
		t.Fatal("short value changed")
	}

	long := strings.Repeat("é", maxCellChars+10)
	got := truncateCell(long)
	if n := utf8.RuneCountInString(got); n != maxCellChars {
		t.Fatalf("truncated to %d runes, want %d", n, maxCellChars)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatal("truncated value should end with an ellipsis")
	}
}
