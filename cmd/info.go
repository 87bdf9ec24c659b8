package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"patentlint/internal/extract"
	"patentlint/internal/logger"
	"patentlint/internal/pdftext"
	"patentlint/internal/raster"
)

var infoCmd = &cobra.Command{
	Use:   "info [pdf-file]",
	Short: "Show page count, validity and the extraction plan of a PDF",
	Long: `Inspect a PDF without running OCR.

Prints the page count and pdfcpu validation result, the page windows the
extraction would read, and how much embedded text the text window holds,
which decides whether extraction takes the embedded-text or the OCR path.`,
	Example: `  patentlint info US1234567B2.pdf
  patentlint info scan.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

// InfoOutput represents the JSON output structure of the info command
type InfoOutput struct {
	*pdftext.Info
	TextWindow    extract.TextWindow `json:"text_window"`
	OCRWindow     raster.Window      `json:"ocr_window"`
	EmbeddedChars int                `json:"embedded_chars"`
	MinTextChars  int                `json:"min_text_chars"`
	PlannedPath   extract.Path       `json:"planned_path"`
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().Bool("json", false, "Output as JSON")
	infoCmd.Flags().Int("tail-text", 0, "Embedded-text tail window in pages (default: TAIL_TEXT_PAGES)")
	infoCmd.Flags().Int("tail-ocr", 0, "OCR tail window in pages (default: TAIL_OCR_PAGES)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("info")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	pdfPath := args[0]

	if _, err := validatePDFFile(pdfPath, log); err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, cfg)
	extractCfg := cfg.ExtractionConfig()
	if err := extractCfg.Validate(); err != nil {
		return err
	}

	info, err := pdftext.Inspect(pdfPath)
	if err != nil {
		return handleExtractionError(err, log)
	}

	doc, err := pdftext.NewReader().Open(pdfPath)
	if err != nil {
		return handleExtractionError(err, log)
	}
	defer doc.Close()

	total := doc.PageCount()
	out := InfoOutput{
		Info:         info,
		TextWindow:   extract.TextWindowFor(total, extractCfg.TailTextPages),
		OCRWindow:    extract.OCRWindowFor(total, extractCfg.TailOCRPages),
		MinTextChars: extractCfg.MinTextChars,
		PlannedPath:  extract.SlowPath,
	}
	if total > 0 {
		text := pdftext.ExtractRange(doc, out.TextWindow.First, out.TextWindow.Last, log)
		out.EmbeddedChars = utf8.RuneCountInString(strings.TrimSpace(text))
	}
	if out.EmbeddedChars >= extractCfg.MinTextChars {
		out.PlannedPath = extract.FastPath
	}

	if info.PageCount != total {
		log.Warn().
			Int("pdfcpu_pages", info.PageCount).
			Int("reader_pages", total).
			Msg("Page counts disagree")
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return writeOutput(data, "", log)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File:            %s\n", info.Path)
	fmt.Fprintf(&b, "Size:            %d bytes\n", info.Size)
	fmt.Fprintf(&b, "Pages:           %d\n", info.PageCount)
	if info.Valid {
		fmt.Fprintf(&b, "Valid:           yes\n")
	} else {
		fmt.Fprintf(&b, "Valid:           no (%s)\n", info.ValidationError)
	}
	fmt.Fprintf(&b, "Text window:     pages %d-%d (0-indexed)\n", out.TextWindow.First, out.TextWindow.Last)
	fmt.Fprintf(&b, "OCR window:      pages %d-%d (1-indexed)\n", out.OCRWindow.First, out.OCRWindow.Last)
	fmt.Fprintf(&b, "Embedded chars:  %d (threshold %d)\n", out.EmbeddedChars, out.MinTextChars)
	fmt.Fprintf(&b, "Planned path:    %s\n", out.PlannedPath)
	return writeOutput([]byte(b.String()), "", log)
}
