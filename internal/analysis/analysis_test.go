package analysis

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
)

type fakeCompleter struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	// respond is called with the 1-based request number.
	respond func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()
	return f.respond(n, req)
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func testCatalog(names ...string) *Catalog {
	c := &Catalog{}
	for _, n := range names {
		c.Prompts = append(c.Prompts, Prompt{Name: n, Template: "Review " + n + ".\n\nPatent text:\n{document}"})
	}
	return c
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 0
	return cfg
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() error = %v", err)
	}
	want := []string{
		"clarity_and_sufficiency",
		"antecedent_issues",
		"semantic_ambiguity",
		"technology_evolution",
		"process_explanation_and_enabling_detail",
		"structural_ambiguity",
		"glossary_recommendation",
		"level_of_skill_in_art",
		"agency_and_control",
	}
	got := c.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for _, p := range c.Prompts {
		if !strings.Contains(p.Template, DocumentPlaceholder) {
			t.Errorf("prompt %s has no %s placeholder", p.Name, DocumentPlaceholder)
		}
	}
}

func TestPromptRender(t *testing.T) {
	p := Prompt{Name: "x", Template: "Check this.\n\nPatent text:\n{document}"}
	if got := p.Render("1. A widget."); got != "Check this.\n\nPatent text:\n1. A widget." {
		t.Fatalf("Render() = %q", got)
	}

	bare := Prompt{Name: "y", Template: "Check this.\n"}
	if got := bare.Render("1. A widget."); got != "Check this.\n\nPatent text:\n1. A widget." {
		t.Fatalf("Render() without placeholder = %q", got)
	}
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{name: "empty", yaml: "prompts: []", want: ErrNoPrompts},
		{name: "not yaml", yaml: "prompts: [", want: ErrInvalidCatalog},
		{name: "missing name", yaml: "prompts:\n  - template: hi", want: ErrInvalidCatalog},
		{name: "empty template", yaml: "prompts:\n  - name: a\n    template: '  '", want: ErrInvalidCatalog},
		{name: "duplicate", yaml: "prompts:\n  - name: a\n    template: x\n  - name: a\n    template: y", want: ErrInvalidCatalog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(tt.yaml)); !errors.Is(err, tt.want) {
				t.Fatalf("ParseCatalog() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	data := "prompts:\n  - name: only\n    template: |\n      Look closely.\n      {document}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if len(c.Prompts) != 1 || c.Prompts[0].Render("DOC") != "Look closely.\nDOC\n" {
		t.Fatalf("unexpected catalog: %+v", c.Prompts)
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestAnalyzeSendsPromptsInOrder(t *testing.T) {
	client := &fakeCompleter{respond: func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return reply("answer " + req.Messages[0].Content[:len("Review x")]), nil
	}}
	d := NewDispatcher(client, testCatalog("a", "b", "c"), testConfig())

	got, err := d.Analyze(context.Background(), "1. A widget.")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(client.requests) != 3 {
		t.Fatalf("sent %d requests, want 3", len(client.requests))
	}
	for i, name := range []string{"a", "b", "c"} {
		req := client.requests[i]
		if len(req.Messages) != 1 || req.Messages[0].Role != openai.ChatMessageRoleUser {
			t.Fatalf("request %d messages = %+v", i, req.Messages)
		}
		if want := "Review " + name + ".\n\nPatent text:\n1. A widget."; req.Messages[0].Content != want {
			t.Fatalf("request %d content = %q", i, req.Messages[0].Content)
		}
		if req.Model != "Meta-Llama-3.3-70B-Instruct" || req.MaxTokens != 4096 || req.TopP != 1.0 || req.Temperature != 0.1 {
			t.Fatalf("request %d parameters = %+v", i, req)
		}
		if got.Results[i].Name != name || got.Results[i].Response != "answer Review "+name || got.Results[i].Failed {
			t.Fatalf("result %d = %+v", i, got.Results[i])
		}
	}
	if got.Responses()["b"] != "answer Review b" || got.FailedCount() != 0 {
		t.Fatalf("Responses() = %v", got.Responses())
	}
}

func TestAnalyzeRetriesThenSucceeds(t *testing.T) {
	client := &fakeCompleter{respond: func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		if n < 3 {
			return openai.ChatCompletionResponse{}, errors.New("connection reset")
		}
		return reply("ok"), nil
	}}
	d := NewDispatcher(client, testCatalog("a"), testConfig())

	got, err := d.Analyze(context.Background(), "claims")
	if err != nil {
		t.Fatal(err)
	}
	if r := got.Results[0]; r.Response != "ok" || r.Attempts != 3 || r.Failed {
		t.Fatalf("result = %+v", r)
	}
}

func TestAnalyzeExhaustedPromptDoesNotAbortBatch(t *testing.T) {
	client := &fakeCompleter{respond: func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		if strings.HasPrefix(req.Messages[0].Content, "Review a") {
			return openai.ChatCompletionResponse{}, errors.New("upstream unavailable")
		}
		return reply("fine"), nil
	}}
	cfg := testConfig()
	cfg.Retries = 2
	d := NewDispatcher(client, testCatalog("a", "b"), cfg)

	got, err := d.Analyze(context.Background(), "claims")
	if err != nil {
		t.Fatal(err)
	}
	if r := got.Results[0]; r.Response != "Error: upstream unavailable" || !r.Failed || r.Attempts != 2 {
		t.Fatalf("failed prompt result = %+v", r)
	}
	if got.Results[1].Response != "fine" || got.FailedCount() != 1 {
		t.Fatalf("second prompt result = %+v", got.Results[1])
	}
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	client := &fakeCompleter{respond: func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "invalid api key"}
	}}
	d := NewDispatcher(client, testCatalog("a"), testConfig())

	got, err := d.Analyze(context.Background(), "claims")
	if err != nil {
		t.Fatal(err)
	}
	if r := got.Results[0]; !r.Failed || r.Attempts != 1 || !strings.Contains(r.Response, "invalid api key") {
		t.Fatalf("result = %+v", r)
	}
}

func TestAnalyzeEmptyChoicesIsRetried(t *testing.T) {
	client := &fakeCompleter{respond: func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, nil
	}}
	cfg := testConfig()
	cfg.Retries = 3
	d := NewDispatcher(client, testCatalog("a"), cfg)

	got, err := d.Analyze(context.Background(), "claims")
	if err != nil {
		t.Fatal(err)
	}
	if r := got.Results[0]; r.Response != "Error: "+ErrEmptyResponse.Error() || r.Attempts != 3 {
		t.Fatalf("result = %+v", r)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeCompleter{respond: func(n int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		cancel()
		return openai.ChatCompletionResponse{}, context.Canceled
	}}
	d := NewDispatcher(client, testCatalog("a", "b"), testConfig())

	if _, err := d.Analyze(ctx, "claims"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("dial tcp: timeout"), true},
		{&openai.APIError{HTTPStatusCode: 500}, true},
		{&openai.APIError{HTTPStatusCode: 429}, true},
		{&openai.APIError{HTTPStatusCode: 400}, false},
		{&openai.RequestError{HTTPStatusCode: 404, Err: errors.New("not found")}, false},
		{&openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")}, true},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
