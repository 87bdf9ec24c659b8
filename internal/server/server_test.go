package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"patentlint/internal/extract"
	"patentlint/internal/metrics"
	"patentlint/internal/pdftext"
	"patentlint/pkg/models"
)

const patentText = "Background text.\nWhat is claimed is:\n1. A widget.\n2. The widget of claim 1."

type fakeExtractor struct {
	text  string
	err   error
	paths []string
}

func (f *fakeExtractor) Extract(ctx context.Context, pdfPath string) (*extract.Result, error) {
	f.paths = append(f.paths, pdfPath)
	if f.err != nil {
		return nil, f.err
	}
	return &extract.Result{Text: f.text, Path: extract.FastPath, TotalPages: 12}, nil
}

type fakeAnalyzer struct {
	claims string
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, claimsText string) (*models.PatentAnalysis, error) {
	f.claims = claimsText
	if f.err != nil {
		return nil, f.err
	}
	return &models.PatentAnalysis{Results: []models.PromptResult{
		{Name: "antecedent_issues", Response: "none found"},
		{Name: "agency_and_control", Response: "Error: upstream unavailable", Failed: true},
	}}, nil
}

func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestServer(t *testing.T, ex Extractor, opts ...Option) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	return New(Config{UploadDir: dir}, ex, metrics.NewMetrics(), opts...), dir
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestAnalyzeReturnsPromptMap(t *testing.T) {
	ex := &fakeExtractor{text: patentText}
	an := &fakeAnalyzer{}
	srv, dir := newTestServer(t, ex, WithAnalyzer(an))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze", "patent", "US123.pdf", []byte("%PDF-1.4")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decode[map[string]string](t, rec)
	if got["antecedent_issues"] != "none found" || got["agency_and_control"] != "Error: upstream unavailable" {
		t.Fatalf("response = %v", got)
	}
	if an.claims != "1. A widget.\n2. The widget of claim 1." {
		t.Fatalf("analyzer received %q", an.claims)
	}

	if len(ex.paths) != 1 || filepath.Dir(ex.paths[0]) != dir || !strings.HasSuffix(ex.paths[0], "-US123.pdf") {
		t.Fatalf("extracted paths = %v", ex.paths)
	}
	if data, err := os.ReadFile(ex.paths[0]); err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("upload not saved: %q, %v", data, err)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{}, WithAnalyzer(&fakeAnalyzer{}))

	for name, req := range map[string]*http.Request{
		"wrong field":   uploadRequest(t, "/analyze", "document", "US123.pdf", []byte("x")),
		"no parts":      uploadRequest(t, "/analyze", "", "", nil),
		"not multipart": httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{}")),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec); got.Error != "No file uploaded" {
				t.Fatalf("error = %+v", got)
			}
		})
	}
}

func TestAnalyzeRejectsNonPDF(t *testing.T) {
	ex := &fakeExtractor{text: patentText}
	srv, _ := newTestServer(t, ex, WithAnalyzer(&fakeAnalyzer{}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze", "patent", "notes.txt", []byte("x")))

	if rec.Code != http.StatusBadRequest || len(ex.paths) != 0 {
		t.Fatalf("status = %d, extractor calls = %d", rec.Code, len(ex.paths))
	}
}

func TestAnalyzeExtractionFailure(t *testing.T) {
	ex := &fakeExtractor{err: pdftext.ErrOpenDocument}
	srv, _ := newTestServer(t, ex, WithAnalyzer(&fakeAnalyzer{}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze", "patent", "US123.pdf", []byte("x")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[ErrorResponse](t, rec)
	if got.Error != "Analysis failed" || !strings.Contains(got.Message, pdftext.ErrOpenDocument.Error()) {
		t.Fatalf("error = %+v", got)
	}
}

func TestAnalyzeDispatchFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{text: patentText}, WithAnalyzer(&fakeAnalyzer{err: context.Canceled}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze", "patent", "US123.pdf", []byte("x")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "Analysis failed" {
		t.Fatalf("error = %+v", got)
	}
}

func TestAnalyzeWithoutAnalyzer(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{text: patentText})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze", "patent", "US123.pdf", []byte("x")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); !strings.Contains(got.Error, "OPENAI_API_KEY") {
		t.Fatalf("error = %+v", got)
	}
}

func TestExtractEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{text: patentText})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/extract", "patent", "US123.PDF", []byte("x")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decode[ExtractResponse](t, rec)
	want := ExtractResponse{
		Text:       patentText,
		Claims:     "1. A widget.\n2. The widget of claim 1.",
		Path:       string(extract.FastPath),
		TotalPages: 12,
	}
	if got != want {
		t.Fatalf("response = %+v, want %+v", got, want)
	}
}

func TestExtractEndpointNoClaims(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{text: "no list here"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/extract", "patent", "US123.pdf", []byte("x")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[ExtractResponse](t, rec); got.Claims != "" {
		t.Fatalf("claims = %q, want empty", got.Claims)
	}
}

func TestInspectorRejectsInvalidPDF(t *testing.T) {
	inspect := func(path string) (*pdftext.Info, error) {
		return &pdftext.Info{Path: path, Valid: false, ValidationError: "xref table corrupt"}, nil
	}
	ex := &fakeExtractor{text: patentText}
	srv, _ := newTestServer(t, ex, WithInspector(inspect))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/extract", "patent", "US123.pdf", []byte("x")))

	if rec.Code != http.StatusBadRequest || len(ex.paths) != 0 {
		t.Fatalf("status = %d, extractor calls = %d", rec.Code, len(ex.paths))
	}
	if got := decode[ErrorResponse](t, rec); got.Message != "xref table corrupt" {
		t.Fatalf("error = %+v", got)
	}
}

func TestInspectorErrorRejectsUpload(t *testing.T) {
	inspect := func(path string) (*pdftext.Info, error) {
		return nil, errors.New("not a PDF")
	}
	srv, _ := newTestServer(t, &fakeExtractor{text: patentText}, WithInspector(inspect))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "/extract", "patent", "US123.pdf", []byte("x")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if got := decode[HealthResponse](t, rec); got.Status != "healthy" {
		t.Fatalf("health = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `patentlint_http_requests_total{code="200",route="/health"} 1`) {
		t.Fatalf("metrics did not record health request:\n%s", rec.Body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
