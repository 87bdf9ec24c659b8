package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"patentlint/internal/analysis"
	"patentlint/internal/extract"
	"patentlint/internal/logger"
	"patentlint/internal/ocr"
	"patentlint/internal/raster"
)

type Config struct {
	// Extraction Configuration
	TailTextPages    int
	TailOCRPages     int
	OCRDPI           int
	OCRTimeout       time.Duration
	OCRLanguage      string
	OCRPageSegMode   int
	OCREngine        string
	OCRFormat        string
	OCRRenderWorkers int
	MinTextChars     int
	CacheSuffix      string

	// LLM Configuration
	OpenAIAPIKey      string
	OpenAIAPIBase     string
	OpenAIModel       string
	OpenAIRole        string
	OpenAITemperature float32
	OpenAITopP        float32
	OpenAIMaxTokens   int
	OpenAIRetries     int
	PromptsFile       string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Server Configuration
	UploadDir  string
	ServerAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment. LLM and Google settings are
// optional here; commands that need them call RequireLLM or build the engine.
func Load() (*Config, error) {
	env := &envReader{}

	config := &Config{
		TailTextPages:    env.Int("TAIL_TEXT_PAGES", 20),
		TailOCRPages:     env.Int("TAIL_OCR_PAGES", 20),
		OCRDPI:           env.Int("OCR_DPI", 200),
		OCRTimeout:       env.Seconds("OCR_TIMEOUT", 25*time.Second),
		OCRLanguage:      getEnv("OCR_LANG", "eng"),
		OCRPageSegMode:   env.Int("OCR_PSM", 6),
		OCREngine:        strings.ToLower(getEnv("OCR_ENGINE", ocr.EngineTesseract)),
		OCRFormat:        strings.ToLower(getEnv("OCR_FORMAT", string(raster.FormatJPEG))),
		OCRRenderWorkers: env.Int("OCR_RENDER_WORKERS", 2),
		MinTextChars:     env.Int("MIN_TEXT_CHARS", 50),
		CacheSuffix:      getEnv("CACHE_SUFFIX", ".tail.txt"),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIBase:     getEnv("OPENAI_API_BASE", "https://api.sambanova.ai/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "Meta-Llama-3.3-70B-Instruct"),
		OpenAIRole:        getEnv("OPENAI_ROLE", "user"),
		OpenAITemperature: env.Float32("OPENAI_TEMPERATURE", 0.1),
		OpenAITopP:        env.Float32("OPENAI_TOP_P", 1.0),
		OpenAIMaxTokens:   env.Int("OPENAI_MAX_TOKENS", 4096),
		OpenAIRetries:     env.Int("OPENAI_RETRIES", 5),
		PromptsFile:       getEnv("PROMPTS_FILE", ""),

		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),

		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Analyses"),

		UploadDir:  getEnv("UPLOAD_DIR", "uploads"),
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("config parsing failed: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := c.ExtractionConfig().Validate(); err != nil {
		return err
	}
	switch c.OCREngine {
	case ocr.EngineTesseract, ocr.EngineVision, ocr.EngineDocumentAI:
	default:
		return fmt.Errorf("OCR_ENGINE must be one of %s, %s, %s, got %q",
			ocr.EngineTesseract, ocr.EngineVision, ocr.EngineDocumentAI, c.OCREngine)
	}
	if _, err := raster.ParseFormat(c.OCRFormat); err != nil {
		return fmt.Errorf("OCR_FORMAT: %w", err)
	}
	if c.OCRRenderWorkers < 1 {
		return fmt.Errorf("OCR_RENDER_WORKERS must be at least 1")
	}
	if c.OpenAIRetries < 1 {
		return fmt.Errorf("OPENAI_RETRIES must be at least 1")
	}
	if c.OpenAIMaxTokens < 1 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be at least 1")
	}
	return nil
}

// RequireLLM reports an error when the settings needed for prompt dispatch are missing.
func (c *Config) RequireLLM() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// RequireSheet reports an error when the Sheets export is not configured.
func (c *Config) RequireSheet() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	return nil
}

// ExtractionConfig returns the pipeline settings.
func (c *Config) ExtractionConfig() extract.Config {
	return extract.Config{
		TailTextPages: c.TailTextPages,
		TailOCRPages:  c.TailOCRPages,
		DPI:           c.OCRDPI,
		OCRTimeout:    c.OCRTimeout,
		Language:      c.OCRLanguage,
		PageSegMode:   c.OCRPageSegMode,
		MinTextChars:  c.MinTextChars,
		CacheSuffix:   c.CacheSuffix,
	}
}

// RasterOptions returns the rasterizer settings.
func (c *Config) RasterOptions() raster.Options {
	opts := raster.DefaultOptions()
	if f, err := raster.ParseFormat(c.OCRFormat); err == nil {
		opts.Format = f
	}
	opts.Workers = c.OCRRenderWorkers
	return opts
}

// DocumentAIConfig returns the settings for the documentai OCR engine.
func (c *Config) DocumentAIConfig() ocr.DocumentAIConfig {
	return ocr.DocumentAIConfig{
		ProjectID:        c.GoogleCloudProject,
		Location:         c.GoogleCloudLocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
	}
}

// AnalysisConfig returns the prompt dispatch settings.
func (c *Config) AnalysisConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.Model = c.OpenAIModel
	cfg.Role = c.OpenAIRole
	cfg.Temperature = c.OpenAITemperature
	cfg.TopP = c.OpenAITopP
	cfg.MaxTokens = c.OpenAIMaxTokens
	cfg.Retries = c.OpenAIRetries
	return cfg
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and collects every malformed value.
type envReader struct {
	errs []error
}

func (r *envReader) Int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return parsed
}

func (r *envReader) Float32(key string, defaultValue float32) float32 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, value))
		return defaultValue
	}
	return float32(parsed)
}

// Seconds reads a number of seconds, fractional values allowed.
func (r *envReader) Seconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number of seconds", key, value))
		return defaultValue
	}
	return time.Duration(parsed * float64(time.Second))
}

func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}
