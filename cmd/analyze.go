package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"patentlint/internal/analysis"
	"patentlint/internal/claims"
	"patentlint/internal/extract"
	"patentlint/internal/logger"
	"patentlint/internal/sheets"
	"patentlint/pkg/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [pdf-file-or-folder]...",
	Short: "Run the review prompts against the claims of one or more patents",
	Long: `Extract the claims of each patent PDF and run every prompt of the catalog
against them through an OpenAI-compatible chat completion API.

Folders are searched recursively for PDF files. Each prompt is retried up to
OPENAI_RETRIES times; a prompt that still fails is reported as "Error: ..."
without stopping the remaining prompts.

With --sheet one row per patent is appended to the Google Sheet at
GOOGLE_SHEET_URL (worksheet GOOGLE_SHEET_WORKSHEET).

Required environment variables:
  OPENAI_API_KEY - API key for the completion endpoint

Optional environment variables:
  OPENAI_API_BASE, OPENAI_MODEL - endpoint and model
  PROMPTS_FILE - YAML prompt catalog replacing the built-in one
  GOOGLE_SHEET_URL - Google Sheets URL for --sheet`,
	Example: `  # Analyse one patent
  patentlint analyze US1234567B2.pdf

  # Analyse a folder with 4 documents in flight, as JSON
  patentlint analyze ./patents --workers 4 --json -o analyses.json

  # Append results to Google Sheets
  patentlint analyze ./patents --sheet

  # Use a custom prompt catalog
  patentlint analyze US1234567B2.pdf --prompts my-prompts.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

// AnalyzeResult represents the result of analysing a single PDF
type AnalyzeResult struct {
	File     string                 `json:"file"`
	Analysis *models.PatentAnalysis `json:"analysis,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
	analyzeCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet at GOOGLE_SHEET_URL")
	analyzeCmd.Flags().String("prompts", "", "Prompt catalog YAML file (default: PROMPTS_FILE or built-in)")
	analyzeCmd.Flags().Int("workers", 1, "Number of documents processed in parallel")
	analyzeCmd.Flags().Int("timeout", 3600, "Processing timeout in seconds for the whole run (0 = none)")
	addExtractionFlags(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("analyze")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	promptsFile, _ := cmd.Flags().GetString("prompts")
	workers, _ := cmd.Flags().GetInt("workers")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", workers)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, cfg)
	if toSheet {
		if err := cfg.RequireSheet(); err != nil {
			return err
		}
	}

	pdfFiles, err := collectPDFFiles(args, log)
	if err != nil {
		return err
	}
	if len(pdfFiles) == 0 {
		return fmt.Errorf("no PDF files found in %s", strings.Join(args, ", "))
	}

	dispatcher, err := createDispatcher(cfg, promptsFile, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	extractor, engine, err := buildExtractor(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	log.Info().
		Int("files", len(pdfFiles)).
		Int("workers", workers).
		Int("prompts", len(dispatcher.Catalog().Prompts)).
		Msg("Starting analysis")

	results := analyzeAll(ctx, pdfFiles, extractor, dispatcher, workers, log)
	if err := ctx.Err(); err != nil {
		return handleExtractionError(err, log)
	}

	var analyses []*models.PatentAnalysis
	for _, r := range results {
		if r.Analysis != nil {
			analyses = append(analyses, r.Analysis)
		}
	}

	if toSheet && len(analyses) > 0 {
		sheetsService, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		if err := sheetsService.AppendAnalyses(ctx, analyses, dispatcher.Catalog().Names(), cfg.GoogleSheetWorksheet); err != nil {
			return fmt.Errorf("failed to write to Google Sheet: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Appended %d rows to sheet %q\n", len(analyses), cfg.GoogleSheetWorksheet)
	}

	var data []byte
	if jsonOutput {
		data, err = json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	} else {
		data = []byte(formatAnalyses(results))
	}
	if err := writeOutput(data, outputPath, log); err != nil {
		return err
	}

	failed := len(results) - len(analyses)
	log.Info().
		Int("total", len(results)).
		Int("analysed", len(analyses)).
		Int("errors", failed).
		Msg("Analysis run completed")

	if len(analyses) == 0 {
		return fmt.Errorf("all %d documents failed", failed)
	}
	return nil
}

// collectPDFFiles expands folders into the PDF files they contain. A file named
// more than once, directly or through a folder, is listed once.
func collectPDFFiles(args []string, log zerolog.Logger) ([]string, error) {
	var pdfFiles []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if seen[key] {
			log.Debug().Str("file", path).Msg("Skipping duplicate PDF")
			return
		}
		seen[key] = true
		pdfFiles = append(pdfFiles, path)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", arg)
		}
		if !info.IsDir() {
			if _, err := validatePDFFile(arg, log); err != nil {
				return nil, err
			}
			add(arg)
			continue
		}
		found, err := findPDFFiles(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to find PDF files: %w", err)
		}
		for _, path := range found {
			add(path)
		}
	}
	return pdfFiles, nil
}

// findPDFFiles finds all PDF files in the specified folder
func findPDFFiles(folderPath string) ([]string, error) {
	var pdfFiles []string

	err := filepath.WalkDir(folderPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			pdfFiles = append(pdfFiles, path)
		}
		return nil
	})

	return pdfFiles, err
}

// analyzeAll processes PDFs with at most workers in flight. Results keep the
// order of pdfFiles; a failed document does not stop the others.
func analyzeAll(ctx context.Context, pdfFiles []string, extractor *extract.Extractor, dispatcher *analysis.Dispatcher, workers int, log zerolog.Logger) []AnalyzeResult {
	results := make([]AnalyzeResult, len(pdfFiles))

	var (
		mu        sync.Mutex
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pdfPath := range pdfFiles {
		g.Go(func() error {
			log.Debug().
				Str("file", pdfPath).
				Int("index", i+1).
				Msg("Processing PDF")

			docLog := logger.WithDocument("analyze", pdfPath)
			result := analyzeOne(gctx, pdfPath, extractor, dispatcher, docLog)
			results[i] = result

			mu.Lock()
			processed++
			status := "✅"
			switch {
			case result.Error != "":
				status = "❌ " + result.Error
			case result.Analysis.FailedCount() > 0:
				status = fmt.Sprintf("⚠️  %d prompts failed", result.Analysis.FailedCount())
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s - %s\n", processed, len(pdfFiles), filepath.Base(pdfPath), status)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func analyzeOne(ctx context.Context, pdfPath string, extractor *extract.Extractor, dispatcher *analysis.Dispatcher, log zerolog.Logger) AnalyzeResult {
	result := AnalyzeResult{File: pdfPath}

	extracted, err := extractor.Extract(ctx, pdfPath)
	if err != nil {
		log.Error().Err(err).Msg("Extraction failed")
		result.Error = err.Error()
		return result
	}

	claimsText := claims.Extract(extracted.Text)
	if claimsText == "" {
		log.Warn().Msg("No claims list found, analysing empty claims")
	}

	a, err := dispatcher.Analyze(ctx, claimsText)
	if err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		result.Error = err.Error()
		return result
	}

	a.FileName = filepath.Base(pdfPath)
	a.TotalPages = extracted.TotalPages
	a.ExtractionPath = string(extracted.Path)
	a.ClaimCount = len(claims.Split(claimsText))
	result.Analysis = a
	return result
}

func formatAnalyses(results []AnalyzeResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.Repeat("=", 80) + "\n")
		fmt.Fprintf(&b, "%s\n", r.File)
		b.WriteString(strings.Repeat("=", 80) + "\n")

		if r.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", r.Error)
			continue
		}

		a := r.Analysis
		fmt.Fprintf(&b, "Pages: %d  Extraction: %s  Claims: %d  Model: %s\n",
			a.TotalPages, a.ExtractionPath, a.ClaimCount, a.Model)
		for _, pr := range a.Results {
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", pr.Name, strings.TrimSpace(pr.Response))
		}
	}
	return b.String()
}
