// Package gemini asks a Gemini model for the admissions advisory report.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"admissions/internal/core"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

// Config configures the client. BaseURL overrides the API endpoint.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Summarizer implements core.Summarizer over the Gemini API.
type Summarizer struct {
	models generator
	model  string
}

// New builds a client for the Gemini developer API.
func New(ctx context.Context, cfg Config) (*Summarizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key required")
	}
	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newSummarizer(client.Models, cfg.Model), nil
}

func newSummarizer(models generator, model string) *Summarizer {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Summarizer{models: models, model: model}
}

// Model returns the model name requests are sent to.
func (s *Summarizer) Model() string { return s.model }

// Summarize sends the advisory prompt and returns the model text.
func (s *Summarizer) Summarize(ctx context.Context, students []core.Student, totalRevenue float64) (string, error) {
	prompt := core.BuildPrompt(students, totalRevenue)
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
