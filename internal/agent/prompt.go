package agent

import (
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
)

// turnSystemPromptTemplate is the single combined classify-and-respond contract
// every turn is evaluated against (spec §5.2). The model must emit exactly
// two lines; parse.go parses them leniently.
const turnSystemPromptTemplate = `You are %s, a support assistant for %s.
%s

Classify the user's message into exactly one of:
- CONVERSATIONAL: greetings, thanks, small talk, anything not about %s's product or service
- DOMAIN_QUERY: a question you should answer using the provided knowledge base context
- OUT_OF_SCOPE: a request about a topic %s does not support

Topics in scope: %s
Topics explicitly out of scope: %s

Respond with exactly two lines, nothing else:
INTENT: <CONVERSATIONAL|DOMAIN_QUERY|OUT_OF_SCOPE>
RESPONSE: <your reply to the user>

If the intent is DOMAIN_QUERY, ground RESPONSE strictly in the provided context below and say so plainly if the context does not contain the answer. Never fabricate information not present in the context.`

// BuildSystemPrompt assembles the turn-level system prompt from the
// tenant's persona configuration.
func BuildSystemPrompt(cfg domain.TenantConfig) string {
	allowed := "anything related to " + cfg.CompanyName
	if len(cfg.AllowedTopics) > 0 {
		allowed = strings.Join(cfg.AllowedTopics, ", ")
	}
	blocked := "none specified"
	if len(cfg.BlockedTopics) > 0 {
		blocked = strings.Join(cfg.BlockedTopics, ", ")
	}

	return fmt.Sprintf(
		turnSystemPromptTemplate,
		cfg.PersonaName,
		cfg.CompanyName,
		cfg.PersonaDescription,
		cfg.CompanyName,
		cfg.CompanyName,
		allowed,
		blocked,
	)
}

// BuildUserPrompt composes the user-turn prompt: retrieved context chunks
// (when any), the recent conversation window, and the new message.
func BuildUserPrompt(message string, history []Turn, chunks []retrieval.RankedChunk) string {
	var sb strings.Builder

	if len(chunks) > 0 {
		sb.WriteString("=== KNOWLEDGE BASE CONTEXT ===\n")
		for i, c := range chunks {
			sb.WriteString(fmt.Sprintf("[%d] (%s, relevance: %.2f)\n%s\n\n", i+1, c.Payload.Filename, c.RelevanceScore, c.Payload.ChunkText))
		}
	}

	if rendered := Render(history); rendered != "" {
		sb.WriteString("=== RECENT CONVERSATION ===\n")
		sb.WriteString(rendered)
		sb.WriteString("\n")
	}

	sb.WriteString("=== USER MESSAGE ===\n")
	sb.WriteString(message)

	return sb.String()
}
