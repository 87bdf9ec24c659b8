package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"patentlint/internal/claims"
	"patentlint/internal/logger"
	"patentlint/internal/pdftext"
)

var claimsCmd = &cobra.Command{
	Use:   "claims [pdf-or-text-file]",
	Short: "Print the claims section of a patent",
	Long: `Locate the claims section of a patent and print it.

The input is either a PDF, which goes through the same tail extraction as the
extract command, or a text file such as a previously written .tail.txt cache.

The claims block is the last numbered list starting at "1." with margin line
numbers removed. With --split every claim is printed on its own line.

With --metadata the front page of a PDF is read as well and its INID fields
(title, abstract, numbers, dates, inventor, assignee) are included. With
--sections the full embedded text is split into its description sections.`,
	Example: `  # Print the claims block
  patentlint claims US1234567B2.pdf

  # One claim per line from a cached extraction
  patentlint claims US1234567B2.tail.txt --split

  # Claims, front page metadata and sections as JSON
  patentlint claims US1234567B2.pdf --split --metadata --sections --json`,
	Args: cobra.ExactArgs(1),
	RunE: runClaims,
}

// ClaimsOutput represents the JSON output structure of the claims command
type ClaimsOutput struct {
	FileName       string            `json:"file_name"`
	ExtractionPath string            `json:"extraction_path,omitempty"`
	Claims         string            `json:"claims"`
	Items          []claims.Claim    `json:"items,omitempty"`
	Metadata       *claims.Metadata  `json:"metadata,omitempty"`
	Sections       map[string]string `json:"sections,omitempty"`
}

func init() {
	rootCmd.AddCommand(claimsCmd)

	claimsCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	claimsCmd.Flags().Bool("json", false, "Output as JSON")
	claimsCmd.Flags().Bool("split", false, "Print one claim per line")
	claimsCmd.Flags().BoolP("metadata", "m", false, "Include INID front page metadata (PDF input only)")
	claimsCmd.Flags().Bool("sections", false, "Include description sections (Background, Summary, ...)")
	claimsCmd.Flags().Int("timeout", 900, "Processing timeout in seconds (0 = none)")
	addExtractionFlags(claimsCmd)
}

func runClaims(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("claims")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	split, _ := cmd.Flags().GetBool("split")
	withMetadata, _ := cmd.Flags().GetBool("metadata")
	withSections, _ := cmd.Flags().GetBool("sections")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	inputPath := args[0]
	isPDF := strings.EqualFold(filepath.Ext(inputPath), ".pdf")

	if withMetadata && !isPDF {
		return fmt.Errorf("--metadata needs a PDF input, got %s", inputPath)
	}

	out := ClaimsOutput{FileName: filepath.Base(inputPath)}

	var text string
	if isPDF {
		if _, err := validatePDFFile(inputPath, log); err != nil {
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

		result, err := extractor.Extract(ctx, inputPath)
		if err != nil {
			return handleExtractionError(err, log)
		}
		text = result.Text
		out.ExtractionPath = string(result.Path)
	} else {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		text = string(data)
	}

	out.Claims = claims.Extract(text)
	if out.Claims == "" {
		log.Warn().Str("file", inputPath).Msg("No claims list found")
	}
	if split {
		out.Items = claims.Split(out.Claims)
	}

	if withMetadata || withSections {
		firstPage, fullText := text, text
		if isPDF {
			var err error
			firstPage, fullText, err = readEmbeddedText(inputPath, withSections, log)
			if err != nil {
				return handleExtractionError(err, log)
			}
		}
		if withMetadata {
			md := claims.ParseINID(firstPage)
			out.Metadata = &md
		}
		if withSections {
			out.Sections = claims.Sections(fullText)
		}
	}

	log.Info().
		Str("file", inputPath).
		Int("claims", len(claims.Split(out.Claims))).
		Msg("Claims located")

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return writeOutput(data, outputPath, log)
	}

	return writeOutput([]byte(formatClaimsText(out)), outputPath, log)
}

// readEmbeddedText returns the embedded text of the first page and, when full is
// set, of the whole document.
func readEmbeddedText(pdfPath string, full bool, log zerolog.Logger) (string, string, error) {
	doc, err := pdftext.NewReader().Open(pdfPath)
	if err != nil {
		return "", "", err
	}
	defer doc.Close()

	total := doc.PageCount()
	if total == 0 {
		return "", "", nil
	}
	firstPage := pdftext.ExtractRange(doc, 0, 0, log)
	if !full {
		return firstPage, "", nil
	}
	return firstPage, pdftext.ExtractRange(doc, 0, total-1, log), nil
}

func formatClaimsText(out ClaimsOutput) string {
	var b strings.Builder

	if out.Metadata != nil {
		md := out.Metadata
		for _, f := range []struct{ label, value string }{
			{"Title", md.Title},
			{"Patent number", md.PatentNumber},
			{"Application number", md.ApplicationNumber},
			{"Priority", md.PriorityClaim},
			{"Issue date", md.IssueDate},
			{"Inventor", md.Inventor},
			{"Assignee", md.Assignee},
			{"Abstract", md.Abstract},
		} {
			if f.value != "" {
				fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
			}
		}
		b.WriteString("\n")
	}

	if out.Sections != nil {
		for _, name := range claims.SectionNames {
			if body, ok := out.Sections[name]; ok {
				fmt.Fprintf(&b, "== %s ==\n%s\n\n", name, body)
			}
		}
	}

	if out.Items != nil {
		b.WriteString(claims.Join(out.Items))
	} else {
		b.WriteString(out.Claims)
	}
	return b.String()
}
