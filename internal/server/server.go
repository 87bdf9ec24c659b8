// Package server exposes the extraction and analysis pipeline over HTTP.
//
// Routes:
//
//	POST /analyze   multipart field "patent": extract, segment claims, run every prompt
//	POST /extract   multipart field "patent": extract and segment claims only
//	GET  /health    liveness
//	GET  /metrics   Prometheus metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"patentlint/internal/extract"
	"patentlint/internal/logger"
	"patentlint/internal/metrics"
	"patentlint/internal/pdftext"
	"patentlint/pkg/models"
)

// Extractor produces the tail text of a PDF on disk.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (*extract.Result, error)
}

// Analyzer runs the prompt catalog against a claims block.
type Analyzer interface {
	Analyze(ctx context.Context, claimsText string) (*models.PatentAnalysis, error)
}

// Inspector validates an uploaded PDF before it enters the pipeline.
type Inspector func(path string) (*pdftext.Info, error)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address (default: ":8080")
	Addr string
	// UploadDir is where uploaded PDFs and their cache files are kept (default: "uploads")
	UploadDir string
	// MaxUploadBytes caps the request body (default: 100MB)
	MaxUploadBytes int64
	// RequestTimeout bounds a single request, OCR and LLM calls included (default: 15m)
	RequestTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 100 << 20
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Minute
	}
}

// Server is the patentlint HTTP server.
type Server struct {
	cfg        Config
	extractor  Extractor
	analyzer   Analyzer
	inspect    Inspector
	metrics    *metrics.Metrics
	httpServer *http.Server
	log        zerolog.Logger

	mu      sync.Mutex
	running bool
}

// Option customizes a Server.
type Option func(*Server)

// WithAnalyzer enables POST /analyze. Without it the route answers 500.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Server) { s.analyzer = a }
}

// WithInspector rejects uploads the inspector reports as invalid PDFs.
func WithInspector(i Inspector) Option {
	return func(s *Server) { s.inspect = i }
}

// New creates a server around extractor. m may be nil.
func New(cfg Config, extractor Extractor, m *metrics.Metrics, opts ...Option) *Server {
	cfg.setDefaults()
	if m == nil {
		m = metrics.NewMetrics()
	}

	s := &Server{
		cfg:       cfg,
		extractor: extractor,
		metrics:   m,
		log:       logger.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with request middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /analyze", s.instrument("/analyze", s.handleAnalyze))
	mux.Handle("POST /extract", s.instrument("/extract", s.handleExtract))
	mux.Handle("GET /health", s.instrument("/health", s.handleHealth))
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	s.log.Info().Msg("HTTP server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument assigns a request ID, attaches a request logger to the context,
// and records metrics for route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		log := logger.WithRequestID(requestID).With().Str("route", route).Logger()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(log.WithContext(r.Context())))

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), duration)
		log.Info().
			Str("method", r.Method).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("Request completed")
	})
}
