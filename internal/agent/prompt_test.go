package agent

import (
	"strings"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
)

func TestBuildSystemPromptFillsPersonaFields(t *testing.T) {
	cfg := domain.TenantConfig{
		PersonaName:        "Riley",
		CompanyName:        "Acme",
		PersonaDescription: "a friendly support agent",
		AllowedTopics:      []string{"billing", "shipping"},
		BlockedTopics:      []string{"legal advice"},
	}
	got := BuildSystemPrompt(cfg)
	for _, want := range []string{"Riley", "Acme", "a friendly support agent", "billing, shipping", "legal advice"} {
		if !strings.Contains(got, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildSystemPromptDefaultsTopicsWhenUnset(t *testing.T) {
	cfg := domain.TenantConfig{PersonaName: "Riley", CompanyName: "Acme"}
	got := BuildSystemPrompt(cfg)
	if !strings.Contains(got, "anything related to Acme") {
		t.Fatalf("expected default allowed-topics fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "none specified") {
		t.Fatalf("expected default blocked-topics fallback, got:\n%s", got)
	}
}

func TestBuildUserPromptIncludesContextHistoryAndMessage(t *testing.T) {
	chunks := []retrieval.RankedChunk{
		{Payload: ports.PointPayload{Filename: "refunds.pdf", ChunkText: "refunds post in 5 days"}, RelevanceScore: 0.9},
	}
	history := []Turn{{UserMessage: "hi", AssistantMessage: "hello"}}

	got := BuildUserPrompt("how long do refunds take", history, chunks)

	if !strings.Contains(got, "refunds.pdf") || !strings.Contains(got, "refunds post in 5 days") {
		t.Fatalf("missing context chunk:\n%s", got)
	}
	if !strings.Contains(got, "hi") || !strings.Contains(got, "hello") {
		t.Fatalf("missing history:\n%s", got)
	}
	if !strings.Contains(got, "how long do refunds take") {
		t.Fatalf("missing user message:\n%s", got)
	}
}

func TestBuildUserPromptOmitsSectionsWhenEmpty(t *testing.T) {
	got := BuildUserPrompt("hello", nil, nil)
	if strings.Contains(got, "KNOWLEDGE BASE CONTEXT") {
		t.Fatalf("expected no context section when no chunks:\n%s", got)
	}
	if strings.Contains(got, "RECENT CONVERSATION") {
		t.Fatalf("expected no history section when no turns:\n%s", got)
	}
}
