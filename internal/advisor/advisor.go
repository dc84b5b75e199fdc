package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"admissions/internal/advisor/gemini"
	"admissions/internal/core"
)

// Provider selects the advisory backend.
type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderLocal  Provider = "local"
	ProviderGemini Provider = "gemini"
)

// Config selects and configures the summariser.
type Config struct {
	Provider     Provider
	GeminiAPIKey string
	Model        string
	BaseURL      string
}

// Open returns the configured summariser. ProviderNone yields nil, which the
// service answers with the fallback text.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (core.Summarizer, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(string(cfg.Provider))))
	switch provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderLocal:
		return NewLocal(), nil
	case ProviderGemini:
		s, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("model", s.Model()).Msg("gemini advisor enabled")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown advisor provider %s", cfg.Provider)
	}
}
