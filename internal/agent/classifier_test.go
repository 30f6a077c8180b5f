package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
)

type fakeLLM struct {
	generateFn func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
	embedFn    func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeLLM) GenerateContent(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	return f.generateFn(ctx, systemPrompt, userPrompt, temperature, maxTokens)
}
func (f *fakeLLM) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(ctx, texts)
	}
	return nil, nil
}

func TestClassifierParsesIntentLine(t *testing.T) {
	llm := &fakeLLM{generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
		return "INTENT: DOMAIN_QUERY", nil
	}}
	c := NewClassifier(llm)

	got, err := c.Classify(context.Background(), "when do refunds post", domain.TenantConfig{PersonaName: "Riley", CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != domain.IntentDomainQuery {
		t.Fatalf("got %v, want domain_query", got)
	}
}

func TestClassifierDefaultsToConversationalOnCallFailure(t *testing.T) {
	llm := &fakeLLM{generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
		return "", errors.New("model unavailable")
	}}
	c := NewClassifier(llm)

	got, err := c.Classify(context.Background(), "hi", domain.TenantConfig{PersonaName: "Riley", CompanyName: "Acme"})
	if err == nil {
		t.Fatalf("expected error surfaced to caller")
	}
	if got != domain.IntentConversational {
		t.Fatalf("got %v, want fallback conversational", got)
	}
}

func TestClassifierDefaultsToConversationalOnUnparseableOutput(t *testing.T) {
	llm := &fakeLLM{generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
		return "I'm not sure what you're asking.", nil
	}}
	c := NewClassifier(llm)

	got, err := c.Classify(context.Background(), "hi", domain.TenantConfig{PersonaName: "Riley", CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != domain.IntentConversational {
		t.Fatalf("got %v, want fallback conversational", got)
	}
}
