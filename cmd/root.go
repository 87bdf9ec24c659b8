package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"patentlint/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "patentlint",
	Short: "patentlint - claim extraction and LLM review for patent PDFs",
	Long: `patentlint extracts the claims section from patent PDFs and runs a catalog
of review prompts against it through an OpenAI-compatible LLM endpoint.

Claims sit at the end of a granted patent, so only the last pages of a PDF are
read. Embedded text is used when present; scanned documents fall back to
rasterizing the tail pages and running OCR on them.

Configuration is read from the environment (and a .env file if present).`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("patentlint executed")

		fmt.Println("Welcome to patentlint!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
