// Package inference talks to the hosted language model. Callers treat every
// error as "use the fallback".
package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"foretrack/internal/log"
)

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrDisabled is returned when no model is configured.
	ErrDisabled = errors.New("inference disabled")
	// ErrEmpty is returned when the model answered with no text.
	ErrEmpty = errors.New("empty model response")
)

const DefaultModel = "gemini-2.0-flash"

// Disabled is the Generator used without an API key.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) { return "", ErrDisabled }

// GeminiConfig configures the hosted model. Endpoint overrides the API base
// URL and HTTPClient the transport; both are optional.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini calls models.generateContent on the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *log.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrDisabled)
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = cfg.Endpoint
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gemini{client: client, model: model, timeout: timeout, logger: logger.WithComponent(log.ComponentInference)}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.logger.WarnContext(ctx, "Model call failed", log.FieldError, err.Error(), "model", g.model)
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := firstCandidateText(resp)
	g.logger.DebugContext(ctx, "Model call finished",
		"model", g.model,
		log.FieldDuration, time.Since(start).Milliseconds(),
		"chars", len(text))
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// Static always answers with a fixed text; used by tests and demos.
type Static struct {
	Text string
	Err  error
}

func (s Static) Generate(context.Context, string) (string, error) {
	return s.Text, s.Err
}
