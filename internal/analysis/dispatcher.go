// Package analysis runs the prompt catalog against a patent's claims with an
// OpenAI-compatible chat completion API.
//
// Prompts are sent one at a time, in catalog order, each as a single message.
// A prompt that still fails after its retries is recorded as "Error: <err>" and
// the batch continues. Only a cancelled context aborts Analyze.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"patentlint/internal/logger"
	"patentlint/pkg/models"
)

// ErrEmptyResponse is returned when the API answers without choices.
var ErrEmptyResponse = errors.New("no response choices")

// Completer is the subset of *openai.Client the dispatcher needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Observer is told about every finished prompt.
type Observer interface {
	RecordPrompt(name string, failed bool, duration time.Duration)
}

// Config configures the dispatcher.
type Config struct {
	Model       string        // Model name sent with every request
	Role        string        // Message role, "user" by default
	Temperature float32       // Sampling temperature
	TopP        float32       // Nucleus sampling
	MaxTokens   int           // Completion token limit
	Retries     int           // Attempts per prompt, including the first
	RetryDelay  time.Duration // Base delay between attempts, doubled each time
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "Meta-Llama-3.3-70B-Instruct",
		Role:        openai.ChatMessageRoleUser,
		Temperature: 0.1,
		TopP:        1.0,
		MaxTokens:   4096,
		Retries:     5,
		RetryDelay:  time.Second,
	}
}

// Dispatcher sends each catalog prompt to the completion API.
type Dispatcher struct {
	client   Completer
	catalog  *Catalog
	config   Config
	observer Observer
	log      zerolog.Logger
}

// NewOpenAIDispatcher creates a dispatcher for the API at baseURL.
func NewOpenAIDispatcher(apiKey, baseURL string, catalog *Catalog, config Config) *Dispatcher {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return NewDispatcher(openai.NewClientWithConfig(clientConfig), catalog, config)
}

// NewDispatcher creates a dispatcher with an explicit client.
func NewDispatcher(client Completer, catalog *Catalog, config Config) *Dispatcher {
	if config.Retries < 1 {
		config.Retries = 1
	}
	if config.Role == "" {
		config.Role = openai.ChatMessageRoleUser
	}
	return &Dispatcher{
		client:  client,
		catalog: catalog,
		config:  config,
		log:     logger.WithComponent("analysis"),
	}
}

// SetObserver attaches an Observer.
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// Catalog returns the dispatcher's prompt catalog.
func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}

// Analyze runs every prompt against claimsText.
func (d *Dispatcher) Analyze(ctx context.Context, claimsText string) (*models.PatentAnalysis, error) {
	const op = "Analyze"

	analysis := &models.PatentAnalysis{
		Model:     d.config.Model,
		StartedAt: time.Now(),
		Results:   make([]models.PromptResult, 0, len(d.catalog.Prompts)),
	}

	d.log.Info().
		Int("prompts", len(d.catalog.Prompts)).
		Int("claims_length", len(claimsText)).
		Str("model", d.config.Model).
		Msg("Starting analysis")

	for _, prompt := range d.catalog.Prompts {
		d.log.Debug().Str("prompt", prompt.Name).Msg("Attempting prompt")

		result := d.run(ctx, prompt, claimsText)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: prompt %s: %w", op, prompt.Name, ctx.Err())
		}
		analysis.Results = append(analysis.Results, result)
		if d.observer != nil {
			d.observer.RecordPrompt(result.Name, result.Failed, result.Duration)
		}

		d.log.Info().
			Str("prompt", prompt.Name).
			Bool("failed", result.Failed).
			Int("attempts", result.Attempts).
			Dur("duration", result.Duration).
			Msg("Done with prompt")
	}

	analysis.Duration = time.Since(analysis.StartedAt)
	d.log.Info().
		Int("failed", analysis.FailedCount()).
		Dur("duration", analysis.Duration).
		Msg("Analysis completed")

	return analysis, nil
}

func (d *Dispatcher) run(ctx context.Context, prompt Prompt, claimsText string) models.PromptResult {
	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model: d.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    d.config.Role,
				Content: prompt.Render(claimsText),
			},
		},
		Temperature: d.config.Temperature,
		TopP:        d.config.TopP,
		MaxTokens:   d.config.MaxTokens,
	}

	var (
		content  string
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			resp, err := d.client.CreateChatCompletion(ctx, req)
			if err != nil {
				if !retryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if len(resp.Choices) == 0 {
				return ErrEmptyResponse
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(d.config.Retries)),
		retry.Delay(d.config.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.log.Warn().
				Err(err).
				Str("prompt", prompt.Name).
				Uint("attempt", n+1).
				Int("max_retries", d.config.Retries).
				Msg("Completion request failed, retrying")
		}),
	)

	result := models.PromptResult{
		Name:     prompt.Name,
		Attempts: attempts,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Response = "Error: " + err.Error()
		result.Failed = true
		return result
	}
	result.Response = content
	return result
}

// retryable reports whether a failed request may succeed when repeated. Client
// errors other than rate limiting will not.
func retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 {
		return status == http.StatusTooManyRequests
	}
	return true
}
