package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// classifyOnlyPromptTemplate asks for intent alone, with no response body.
// Kept as a fallback utility for callers that want to classify without
// paying for a generation — HandleTurn does not use it; the combined
// classify-and-respond call in turn.go is the canonical hot path (spec §9).
const classifyOnlyPromptTemplate = `You are classifying a message sent to %s, a support assistant for %s.
Topics in scope: %s
Topics explicitly out of scope: %s

Classify the user's message into exactly one of CONVERSATIONAL, DOMAIN_QUERY, OUT_OF_SCOPE.
Respond with exactly one line:
INTENT: <CONVERSATIONAL|DOMAIN_QUERY|OUT_OF_SCOPE>`

// Classifier runs the standalone intent classification call, independent of
// response generation.
type Classifier struct {
	llm ports.LanguageModel
}

// NewClassifier creates a Classifier.
func NewClassifier(llm ports.LanguageModel) *Classifier {
	return &Classifier{llm: llm}
}

// Classify returns the message's intent only. On call failure or
// unparseable output it defaults to CONVERSATIONAL, matching the combined
// call's fallback behavior.
func (c *Classifier) Classify(ctx context.Context, message string, cfg domain.TenantConfig) (domain.IntentType, error) {
	allowed := "anything related to " + cfg.CompanyName
	if len(cfg.AllowedTopics) > 0 {
		allowed = strings.Join(cfg.AllowedTopics, ", ")
	}
	blocked := "none specified"
	if len(cfg.BlockedTopics) > 0 {
		blocked = strings.Join(cfg.BlockedTopics, ", ")
	}

	systemPrompt := fmt.Sprintf(classifyOnlyPromptTemplate, cfg.PersonaName, cfg.CompanyName, allowed, blocked)

	raw, err := c.llm.GenerateContent(ctx, systemPrompt, message, generationTemperature, 50)
	if err != nil {
		return domain.IntentConversational, fmt.Errorf("agent.Classify: %w", err)
	}

	for _, line := range strings.Split(raw, "\n") {
		if _, rest, ok := splitLabel(strings.TrimSpace(line), "INTENT"); ok {
			if intent, ok := matchIntent(rest); ok {
				return intent, nil
			}
		}
	}
	return domain.IntentConversational, nil
}
