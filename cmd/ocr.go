package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"patentlint/internal/config"
	"patentlint/internal/extract"
	"patentlint/internal/logger"
	"patentlint/internal/ocr"
	"patentlint/internal/pdftext"
	"patentlint/internal/raster"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [pdf-file]",
	Short: "OCR a page range of a PDF, ignoring embedded text",
	Long: `Render a range of PDF pages with pdftoppm and recognize them with the
configured OCR engine, regardless of any embedded text.

Pages are 1-indexed and the range is inclusive. Without --first/--last the
OCR tail window of the extract command is used. Pages that time out or fail
are replaced by a marker line. No cache file is written.

Engines:
  tesseract   - local, requires libtesseract (default)
  vision      - Google Cloud Vision, needs Google credentials
  documentai  - Google Document AI, needs credentials, GOOGLE_CLOUD_PROJECT,
                GOOGLE_CLOUD_LOCATION and DOCUMENT_AI_PROCESSOR_ID`,
	Example: `  # OCR the tail window of a scan
  patentlint ocr scan.pdf

  # OCR pages 3 to 5 with Google Cloud Vision
  patentlint ocr scan.pdf --first 3 --last 5 --engine vision

  # Per-page results as JSON
  patentlint ocr scan.pdf --json -o pages.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCRPage is one page of the ocr command's JSON output
type OCRPage struct {
	Page    int          `json:"page"`
	Text    string       `json:"text,omitempty"`
	Failure *ocr.Failure `json:"failure,omitempty"`
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string        `json:"text"`
	Pages              []OCRPage     `json:"pages"`
	Window             raster.Window `json:"window"`
	Engine             string        `json:"engine"`
	ProcessingDuration string        `json:"processing_duration"`
	FileName           string        `json:"file_name"`
	FileSize           int64         `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 900, "Processing timeout in seconds (0 = none)")
	ocrCmd.Flags().Int("first", 0, "First page to OCR, 1-indexed (default: start of the OCR tail window)")
	ocrCmd.Flags().Int("last", 0, "Last page to OCR, 1-indexed (default: last page)")
	addExtractionFlags(ocrCmd)
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	first, _ := cmd.Flags().GetInt("first")
	last, _ := cmd.Flags().GetInt("last")

	pdfPath := args[0]

	fileInfo, err := validatePDFFile(pdfPath, log)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, cfg)

	info, err := pdftext.Inspect(pdfPath)
	if err != nil {
		return handleExtractionError(err, log)
	}

	window := extract.OCRWindowFor(info.PageCount, cfg.TailOCRPages)
	if first > 0 {
		window.First = first
	}
	if last > 0 {
		window.Last = last
	}
	if window.First < 1 || window.Last > info.PageCount || window.Len() == 0 {
		return fmt.Errorf("invalid page range %d-%d for a %d page document", window.First, window.Last, info.PageCount)
	}

	log.Info().
		Str("file", pdfPath).
		Int("first", window.First).
		Int("last", window.Last).
		Str("engine", cfg.OCREngine).
		Msg("Starting OCR processing")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	engine, err := createOCREngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	startTime := time.Now()
	results, err := recognizeWindow(ctx, cfg, engine, pdfPath, window)
	if err != nil {
		return handleExtractionError(err, log)
	}
	duration := time.Since(startTime)

	failures := ocr.Failures(results)
	for _, f := range failures {
		log.Warn().
			Int("page", f.Page).
			Str("kind", string(f.Kind)).
			Str("detail", f.Detail).
			Msg("OCR page failed")
	}

	log.Info().
		Int("pages", len(results)).
		Int("failures", len(failures)).
		Dur("duration", duration).
		Msg("OCR processing completed")

	if !jsonOutput {
		return writeOutput([]byte(ocr.Render(results)), outputPath, log)
	}

	out := OCROutput{
		Text:               ocr.Render(results),
		Window:             window,
		Engine:             engine.Name(),
		ProcessingDuration: duration.String(),
		FileName:           fileInfo.Name(),
		FileSize:           fileInfo.Size(),
	}
	for _, r := range results {
		out.Pages = append(out.Pages, OCRPage{Page: r.Page, Text: r.Text, Failure: r.Failure})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return writeOutput(data, outputPath, log)
}

// recognizeWindow renders window into a temp dir and OCRs its pages in order
func recognizeWindow(ctx context.Context, cfg *config.Config, engine ocr.Engine, pdfPath string, window raster.Window) ([]ocr.PageResult, error) {
	renderer := raster.NewPoppler(cfg.RasterOptions())
	opts := ocr.Options{
		Language:    cfg.OCRLanguage,
		PageSegMode: cfg.OCRPageSegMode,
		DPI:         cfg.OCRDPI,
	}

	var results []ocr.PageResult
	err := raster.WithTempDir("patentlint-ocr-*", func(dir string) error {
		pages, err := renderer.RenderPages(ctx, pdfPath, window, cfg.OCRDPI, dir)
		if err != nil {
			return err
		}
		for _, p := range pages {
			r, err := ocr.RecognizePage(ctx, engine, p.Number, p.Path, opts, cfg.OCRTimeout)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	return results, err
}
