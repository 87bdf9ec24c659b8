package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"patentlint/internal/logger"
	"patentlint/internal/metrics"
	"patentlint/internal/pdftext"
	"patentlint/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction and analysis over HTTP",
	Long: `Start an HTTP server that accepts patent PDF uploads.

Routes:
  POST /analyze  multipart field "patent"; returns a JSON object mapping each
                 prompt name to the model's response
  POST /extract  multipart field "patent"; returns the tail text and claims
  GET  /health   liveness check
  GET  /metrics  Prometheus metrics

Uploads are stored in UPLOAD_DIR together with their .tail.txt cache files.
POST /analyze answers 500 when OPENAI_API_KEY is not set; /extract works
without it.`,
	Example: `  # Listen on the default address (:8080)
  patentlint serve

  # Custom address, reject uploads that fail PDF validation
  patentlint serve --addr 127.0.0.1:9000 --validate

  # Try it
  curl -F patent=@US1234567B2.pdf http://localhost:8080/analyze`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: SERVER_ADDR)")
	serveCmd.Flags().String("upload-dir", "", "Upload directory (default: UPLOAD_DIR)")
	serveCmd.Flags().Bool("validate", false, "Validate uploads with pdfcpu before processing")
	serveCmd.Flags().String("prompts", "", "Prompt catalog YAML file (default: PROMPTS_FILE or built-in)")
	serveCmd.Flags().Int("max-upload-mb", 100, "Maximum upload size in megabytes")
	serveCmd.Flags().Int("request-timeout", 900, "Per-request processing timeout in seconds")
	addExtractionFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	uploadDir, _ := cmd.Flags().GetString("upload-dir")
	validate, _ := cmd.Flags().GetBool("validate")
	promptsFile, _ := cmd.Flags().GetString("prompts")
	maxUploadMB, _ := cmd.Flags().GetInt("max-upload-mb")
	requestTimeout, _ := cmd.Flags().GetInt("request-timeout")

	if maxUploadMB < 1 {
		return fmt.Errorf("--max-upload-mb must be at least 1, got %d", maxUploadMB)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyExtractionFlags(cmd, cfg)
	if addr == "" {
		addr = cfg.ServerAddr
	}
	if uploadDir == "" {
		uploadDir = cfg.UploadDir
	}

	ctx, cancel := createContextWithTimeout(0, log)
	defer cancel()

	m := metrics.NewMetrics()

	extractor, engine, err := buildExtractor(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []server.Option
	if cfg.RequireLLM() == nil {
		dispatcher, err := createDispatcher(cfg, promptsFile, log)
		if err != nil {
			return err
		}
		dispatcher.SetObserver(m)
		opts = append(opts, server.WithAnalyzer(dispatcher))
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, POST /analyze will fail")
	}
	if validate {
		opts = append(opts, server.WithInspector(pdftext.Inspect))
	}

	srv := server.New(server.Config{
		Addr:           addr,
		UploadDir:      uploadDir,
		MaxUploadBytes: int64(maxUploadMB) << 20,
		RequestTimeout: time.Duration(requestTimeout) * time.Second,
	}, extractor, m, opts...)

	log.Info().
		Str("addr", addr).
		Str("upload_dir", uploadDir).
		Str("engine", engine.Name()).
		Bool("validate", validate).
		Msg("Starting server")

	return srv.Start(ctx)
}
