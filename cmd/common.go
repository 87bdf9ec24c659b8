package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"patentlint/internal/analysis"
	"patentlint/internal/config"
	"patentlint/internal/extract"
	"patentlint/internal/ocr"
	"patentlint/internal/pdftext"
	"patentlint/internal/raster"
)

// loadConfig reads the environment configuration
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, err
	}
	return cfg, nil
}

// validatePDFFile checks if the file exists, is readable, and appears to be a PDF
func validatePDFFile(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", pdfPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", pdfPath).
			Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling.
// A zero timeout means no deadline.
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createOCREngine creates the configured OCR engine
func createOCREngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.Engine, error) {
	engine, err := ocr.NewEngine(ctx, cfg.OCREngine, cfg.DocumentAIConfig())
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Error().Err(err).Msg("Google Cloud credentials not configured")
			return nil, fmt.Errorf("Google Cloud credentials not configured for the %s engine. Please set one of:\n\n"+
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n"+
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
				"2. Export GOOGLE_CREDENTIALS with inline JSON:\n"+
				"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n"+
				"3. Use Application Default Credentials (if gcloud is configured):\n"+
				"   gcloud auth application-default login\n\n"+
				"Or switch to local OCR with OCR_ENGINE=tesseract", cfg.OCREngine)
		case errors.Is(err, ocr.ErrInvalidConfiguration):
			log.Error().Err(err).Msg("OCR engine configuration invalid")
			return nil, fmt.Errorf("OCR engine configuration invalid: %w\n\n"+
				"The documentai engine needs GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION and DOCUMENT_AI_PROCESSOR_ID", err)
		default:
			log.Error().Err(err).Msg("Failed to create OCR engine")
			return nil, fmt.Errorf("failed to create OCR engine: %w", err)
		}
	}

	log.Debug().Str("engine", engine.Name()).Msg("OCR engine created successfully")
	return engine, nil
}

// buildExtractor wires the extraction pipeline from cfg. The returned engine must
// be closed by the caller.
func buildExtractor(ctx context.Context, cfg *config.Config, observer extract.Observer, log zerolog.Logger) (*extract.Extractor, ocr.Engine, error) {
	engine, err := createOCREngine(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	opts := []extract.Option{}
	if observer != nil {
		opts = append(opts, extract.WithObserver(observer))
	}

	extractor, err := extract.New(
		cfg.ExtractionConfig(),
		pdftext.NewReader(),
		raster.NewPoppler(cfg.RasterOptions()),
		engine,
		opts...,
	)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return extractor, engine, nil
}

// createDispatcher builds the prompt dispatcher. promptsFile overrides
// PROMPTS_FILE; both empty selects the embedded catalog.
func createDispatcher(cfg *config.Config, promptsFile string, log zerolog.Logger) (*analysis.Dispatcher, error) {
	if err := cfg.RequireLLM(); err != nil {
		log.Error().Err(err).Msg("LLM not configured")
		return nil, fmt.Errorf("%w. Set it in the environment or in .env; OPENAI_API_BASE selects a non-default endpoint", err)
	}

	if promptsFile == "" {
		promptsFile = cfg.PromptsFile
	}

	var (
		catalog *analysis.Catalog
		err     error
	)
	if promptsFile != "" {
		catalog, err = analysis.LoadCatalog(promptsFile)
	} else {
		catalog, err = analysis.DefaultCatalog()
	}
	if err != nil {
		log.Error().Err(err).Str("prompts_file", promptsFile).Msg("Failed to load prompt catalog")
		return nil, fmt.Errorf("failed to load prompt catalog: %w", err)
	}

	log.Debug().
		Int("prompts", len(catalog.Prompts)).
		Str("model", cfg.OpenAIModel).
		Str("base_url", cfg.OpenAIAPIBase).
		Msg("Prompt dispatcher created")

	return analysis.NewOpenAIDispatcher(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, catalog, cfg.AnalysisConfig()), nil
}

// handleExtractionError provides user-friendly error messages for extraction failures
func handleExtractionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout or lowering TAIL_OCR_PAGES")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, pdftext.ErrOpenDocument):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity: %w", err)
	case errors.Is(err, raster.ErrRenderFailed):
		if strings.Contains(errStr, "executable file not found") {
			return fmt.Errorf("pdftoppm not found. Install poppler (e.g. apt install poppler-utils or brew install poppler)")
		}
		return fmt.Errorf("failed to rasterize PDF pages for OCR: %w", err)
	case errors.Is(err, extract.ErrCacheWrite):
		return fmt.Errorf("could not write the cache file next to the PDF. Check that its directory is writable: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.\n\n"+
			"Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account may call the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("Google Cloud OCR quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}

// writeOutput writes data to outputPath, or to stdout when outputPath is empty
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Println()
	}
	return nil
}
