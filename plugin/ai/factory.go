package ai

import (
	"context"

	"github.com/pkg/errors"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
)

// NewGeneratorFromProfile picks a provider from the configured API keys.
// Gemini is preferred; an OpenAI-compatible endpoint serves as fallback.
func NewGeneratorFromProfile(ctx context.Context, p *profile.Profile) (Generator, error) {
	if p.GeminiAPIKey != "" {
		return NewGeminiGenerator(ctx, p.GeminiAPIKey)
	}
	if p.OpenAIAPIKey != "" {
		return NewOpenAIGenerator(p.OpenAIAPIKey, p.OpenAIBaseURL), nil
	}
	return nil, errors.New("no model provider configured: set GEMINI_CHATBOT_GEMINI_API_KEY or GEMINI_CHATBOT_OPENAI_API_KEY")
}
