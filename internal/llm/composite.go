package llm

import (
	"context"
	"log/slog"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// Composite implements ports.LanguageModel by preferring a tenant-supplied
// secondary provider for generation (a BYOLLM endpoint billed to the
// tenant) and falling back to the primary (VertexProvider) on any error.
// Embedding always goes to the primary: BYOLLM providers don't carry an
// embedding model, and a tenant switching generation vendors shouldn't
// also fragment its vector space mid-corpus.
type Composite struct {
	primary   ports.LanguageModel
	secondary ports.LanguageModel
}

// NewComposite creates a Composite. secondary may be nil, in which case
// every call goes straight to primary.
func NewComposite(primary, secondary ports.LanguageModel) *Composite {
	return &Composite{primary: primary, secondary: secondary}
}

var _ ports.LanguageModel = (*Composite)(nil)

func (c *Composite) GenerateContent(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if c.secondary == nil {
		return c.primary.GenerateContent(ctx, systemPrompt, userPrompt, temperature, maxTokens)
	}

	text, err := c.secondary.GenerateContent(ctx, systemPrompt, userPrompt, temperature, maxTokens)
	if err == nil {
		return text, nil
	}

	slog.Warn("llm.Composite: secondary provider failed, falling back to primary", "error", err)
	return c.primary.GenerateContent(ctx, systemPrompt, userPrompt, temperature, maxTokens)
}

func (c *Composite) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.primary.EmbedTexts(ctx, texts)
}
