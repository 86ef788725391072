// Package ai suggests names for new reference markers using vision language models.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/marker-scanner/internal/config"
	"github.com/kozaktomas/marker-scanner/internal/constants"
)

// Provider defines the interface for vision backends.
type Provider interface {
	Name() string
	SuggestMarker(ctx context.Context, imageData []byte) (*MarkerSuggestion, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// MarkerSuggestion is what a model proposes for a reference image.
type MarkerSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"` // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// ProviderNames lists the providers NewProvider accepts.
var ProviderNames = []string{constants.ProviderOpenAI, constants.ProviderGemini, constants.ProviderOllama}

// NewProvider creates the named provider from configuration.
func NewProvider(ctx context.Context, name string, cfg *config.Config) (Provider, error) {
	switch name {
	case constants.ProviderOpenAI:
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required")
		}
		pricing := cfg.GetModelPricing(openAIModel)
		return NewOpenAIProvider(cfg.OpenAI.Token,
			RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
		), nil
	case constants.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		pricing := cfg.GetModelPricing(geminiModel)
		p, err := NewGeminiProvider(ctx, cfg.Gemini.APIKey,
			RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
		)
		if err != nil {
			return nil, fmt.Errorf("creating Gemini provider: %w", err)
		}
		return p, nil
	case constants.ProviderOllama:
		return NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, gemini, ollama)", name)
	}
}
