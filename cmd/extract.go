package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"patentlint/internal/config"
	"patentlint/internal/extract"
	"patentlint/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file]",
	Short: "Extract the tail text of a patent PDF",
	Long: `Extract the text of the last pages of a patent PDF.

Embedded text is read from the last TAIL_TEXT_PAGES pages. If that yields fewer
than MIN_TEXT_CHARS characters the last TAIL_OCR_PAGES pages are rendered with
pdftoppm and recognized with the configured OCR engine, one page at a time.
Pages that time out or fail are replaced by a marker line instead of aborting.

The result is also written next to the PDF as <name>.tail.txt, replacing any
earlier file.

Optional environment variables:
  OCR_ENGINE - tesseract (default), vision, or documentai
  OCR_DPI, OCR_TIMEOUT, OCR_LANG, OCR_PSM - OCR tuning
  TAIL_TEXT_PAGES, TAIL_OCR_PAGES, MIN_TEXT_CHARS - window sizes and threshold`,
	Example: `  # Print the tail text to stdout
  patentlint extract US1234567B2.pdf

  # Save as JSON including window and OCR failure details
  patentlint extract US1234567B2.pdf --json -o result.json

  # Use Google Cloud Vision for scanned documents
  patentlint extract scan.pdf --engine vision

  # Read a longer tail at higher resolution
  patentlint extract scan.pdf --tail-ocr 30 --dpi 300`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput represents the JSON output structure when --json flag is used
type ExtractOutput struct {
	*extract.Result
	FileName           string `json:"file_name"`
	FileSize           int64  `json:"file_size"`
	ProcessingDuration string `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Int("timeout", 900, "Processing timeout in seconds (0 = none)")
	addExtractionFlags(extractCmd)
}

// addExtractionFlags registers flags that override extraction settings from the environment
func addExtractionFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "", "OCR engine: tesseract, vision, documentai (default: OCR_ENGINE)")
	cmd.Flags().Int("tail-text", 0, "Embedded-text tail window in pages (default: TAIL_TEXT_PAGES)")
	cmd.Flags().Int("tail-ocr", 0, "OCR tail window in pages (default: TAIL_OCR_PAGES)")
	cmd.Flags().Int("dpi", 0, "Rasterization DPI (default: OCR_DPI)")
}

// applyExtractionFlags copies explicitly set extraction flags onto cfg
func applyExtractionFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("engine") {
		engine, _ := cmd.Flags().GetString("engine")
		cfg.OCREngine = strings.ToLower(engine)
	}
	if cmd.Flags().Changed("tail-text") {
		cfg.TailTextPages, _ = cmd.Flags().GetInt("tail-text")
	}
	if cmd.Flags().Changed("tail-ocr") {
		cfg.TailOCRPages, _ = cmd.Flags().GetInt("tail-ocr")
	}
	if cmd.Flags().Changed("dpi") {
		cfg.OCRDPI, _ = cmd.Flags().GetInt("dpi")
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	log.Info().
		Str("file", pdfPath).
		Str("output", outputPath).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting extraction")

	fileInfo, err := validatePDFFile(pdfPath, log)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, cfg)

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	extractor, engine, err := buildExtractor(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	startTime := time.Now()
	if !jsonOutput {
		text, err := extractor.ExtractText(ctx, pdfPath)
		if err != nil {
			return handleExtractionError(err, log)
		}
		log.Info().
			Int("text_length", len(text)).
			Dur("duration", time.Since(startTime)).
			Msg("Extraction completed")
		return writeOutput([]byte(text), outputPath, log)
	}

	result, err := extractor.Extract(ctx, pdfPath)
	if err != nil {
		return handleExtractionError(err, log)
	}

	log.Info().
		Str("path", string(result.Path)).
		Int("total_pages", result.TotalPages).
		Int("ocr_failures", len(result.Failures)).
		Str("cache", result.CachePath).
		Dur("duration", time.Since(startTime)).
		Msg("Extraction completed")

	out := ExtractOutput{
		Result:             result,
		FileName:           fileInfo.Name(),
		FileSize:           fileInfo.Size(),
		ProcessingDuration: result.Duration.String(),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return writeOutput(data, outputPath, log)
}
