package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"patentlint/internal/claims"
	"patentlint/internal/extract"
	"patentlint/internal/logger"
)

const (
	uploadField = "patent"

	msgNoFile = "No file uploaded"
	msgNotPDF = "Only PDF files are accepted"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ExtractResponse is the JSON body of POST /extract.
type ExtractResponse struct {
	Text       string `json:"text"`
	Claims     string `json:"claims"`
	Path       string `json:"path"`
	TotalPages int    `json:"total_pages"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "patentlint"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	path, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, claimsText, err := s.extractClaims(ctx, path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Extraction failed", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ExtractResponse{
		Text:       res.Text,
		Claims:     claimsText,
		Path:       string(res.Path),
		TotalPages: res.TotalPages,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := logger.WithContext(r.Context())

	path, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	if s.analyzer == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Missing OPENAI_API_KEY environment variable"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, claimsText, err := s.extractClaims(ctx, path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Analysis failed", Message: err.Error()})
		return
	}

	log.Info().Msg("Starting analysis")
	analysis, err := s.analyzer.Analyze(ctx, claimsText)
	if err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Analysis failed", Message: err.Error()})
		return
	}

	log.Info().
		Str("extraction_path", string(res.Path)).
		Int("failed_prompts", analysis.FailedCount()).
		Dur("analysis_duration", analysis.Duration).
		Msg("Analysis completed")

	writeJSON(w, http.StatusOK, analysis.Responses())
}

// extractClaims runs extraction and returns the result with its claims block.
func (s *Server) extractClaims(ctx context.Context, path string) (*extract.Result, string, error) {
	log := logger.WithContext(ctx)

	res, err := s.extractor.Extract(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("document", path).Msg("Extraction failed")
		return nil, "", err
	}

	claimsText := claims.Extract(res.Text)
	if claimsText == "" {
		log.Warn().Str("document", path).Msg("No claims list found")
	}
	return res, claimsText, nil
}

// receiveUpload stores the uploaded PDF under the upload directory. On failure it
// writes the error response and returns false.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	log := logger.WithContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "File too large",
				Message: fmt.Sprintf("limit is %d bytes", tooLarge.Limit),
			})
		default:
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgNoFile})
		}
		return "", false
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgNotPDF, Message: name})
		return "", false
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save upload")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Analysis failed", Message: err.Error()})
		return "", false
	}
	log.Info().Str("file", name).Str("path", path).Int64("size", header.Size).Msg("Upload saved")

	if s.inspect != nil {
		info, err := s.inspect(path)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid PDF", Message: err.Error()})
			return "", false
		}
		if !info.Valid {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid PDF", Message: info.ValidationError})
			return "", false
		}
	}

	return path, true
}

// saveUpload copies src to a unique file in the upload directory. The name keeps
// the client's base name behind a random prefix so concurrent uploads of the same
// file do not share a path or a cache file.
func (s *Server) saveUpload(src multipart.File, name string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()[:8]+"-"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
