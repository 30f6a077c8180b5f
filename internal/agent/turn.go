package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
)

const (
	generationTemperature = 0.3
	generationMaxTokens   = 1000

	reasonLowConfidence = "low_retrieval_confidence"
	reasonMaxTurns      = "max_turns_exceeded"

	escalationCannedResponse = "I don't have enough information to answer that confidently. Let me connect you with a human agent who can help."
)

// Escalator is the narrow slice of internal/escalation's contract HandleTurn
// needs: hand off a low-confidence or over-length session without caring how
// the webhook gets delivered.
type Escalator interface {
	Escalate(ctx context.Context, sessionID, tenantID, reason, lastUserMessage string, webhookURL, externalUserID string) error
}

// TurnOutput is the full result of one HandleTurn call — what the caller
// sends back to the end user plus the bookkeeping fields it needs to log
// and bill (spec §4.3).
type TurnOutput struct {
	MessageID          string
	Response           string
	IntentType         domain.IntentType
	Confidence         *float64
	SourceChunks       []domain.SourceChunk
	EscalationRequired bool
	EscalationReason   string
	InputTokens        int
	OutputTokens       int
	LatencyMs          int64
}

// Turns owns the per-turn state machine: classify, branch, retrieve when
// needed, respond, persist, and escalate. It is the single entry point a
// chat handler calls per inbound message.
type Turns struct {
	llm        ports.LanguageModel
	retriever  *retrieval.Retriever
	messages   ports.MessageStore
	memory     *Memory
	escalation Escalator
}

// NewTurns creates a Turns orchestrator.
func NewTurns(llm ports.LanguageModel, retriever *retrieval.Retriever, messages ports.MessageStore, memory *Memory, escalation Escalator) *Turns {
	return &Turns{
		llm:        llm,
		retriever:  retriever,
		messages:   messages,
		memory:     memory,
		escalation: escalation,
	}
}

// HandleTurn runs one turn end to end for sessionID. It never returns an
// error for a degraded downstream (retrieval, rerank, generation) — those
// already degrade gracefully internally or are treated as "answer
// conversationally" — it only returns an error when persistence itself
// fails, since a turn the caller believes succeeded but never landed in
// MessageStore would silently lose the user's message.
func (t *Turns) HandleTurn(ctx context.Context, sessionID, tenantID, message string, cfg domain.TenantConfig) (*TurnOutput, error) {
	start := time.Now()

	history := t.memory.Load(ctx, sessionID)
	systemPrompt := BuildSystemPrompt(cfg)
	classifyPrompt := BuildUserPrompt(message, history, nil)

	raw, err := t.llm.GenerateContent(ctx, systemPrompt, classifyPrompt, generationTemperature, generationMaxTokens)
	if err != nil {
		slog.Warn("agent.HandleTurn: classify call failed, defaulting to conversational", "session_id", sessionID, "error", err)
		raw = ""
	}
	parsed := ParseTurn(raw)

	var out *TurnOutput
	switch parsed.Intent {
	case domain.IntentOutOfScope:
		out = t.respondStatic(parsed, outOfScopeFallback(cfg))
	case domain.IntentDomainQuery:
		out, err = t.handleDomainQuery(ctx, sessionID, tenantID, message, history, cfg)
		if err != nil {
			return nil, err
		}
	default:
		out = t.respondStatic(parsed, conversationalFallback(cfg))
	}

	out.MessageID = uuid.NewString()
	out.LatencyMs = time.Since(start).Milliseconds()

	if err := t.persistAndRemember(ctx, sessionID, tenantID, message, out); err != nil {
		return nil, err
	}

	return out, nil
}

// respondStatic fills in a branch's response, falling back to the static
// text when the classify-and-respond call left the response empty (call
// failure or a model that didn't follow the contract).
func (t *Turns) respondStatic(parsed ParsedTurn, fallback string) *TurnOutput {
	response := strings.TrimSpace(parsed.Response)
	if response == "" || strings.EqualFold(response, "needs_retrieval") {
		response = fallback
	}
	return &TurnOutput{IntentType: parsed.Intent, Response: response}
}

func conversationalFallback(cfg domain.TenantConfig) string {
	return fmt.Sprintf("Hi there! I'm %s. How can I help you today?", cfg.PersonaName)
}

func outOfScopeFallback(cfg domain.TenantConfig) string {
	topics := "anything related to " + cfg.CompanyName
	if len(cfg.AllowedTopics) > 0 {
		topics = strings.Join(cfg.AllowedTopics, ", ")
	}
	return fmt.Sprintf("That's outside what I can help with. I can assist with: %s", topics)
}

// handleDomainQuery runs §4.2 retrieval and either escalates, answers
// conversationally (empty knowledge base — never an escalation cause), or
// composes a grounded answer.
func (t *Turns) handleDomainQuery(ctx context.Context, sessionID, tenantID, message string, history []Turn, cfg domain.TenantConfig) (*TurnOutput, error) {
	turnCount, err := t.messages.CountUserMessages(ctx, sessionID)
	if err != nil {
		slog.Warn("agent.handleDomainQuery: count user messages failed, treating as first turn", "session_id", sessionID, "error", err)
		turnCount = 0
	}

	result, err := t.retriever.Retrieve(ctx, tenantID, message, retrieval.Options{})
	if err != nil {
		slog.Warn("agent.handleDomainQuery: retrieval failed, falling back to conversational", "session_id", sessionID, "error", err)
		return &TurnOutput{
			IntentType:   domain.IntentConversational,
			Response: conversationalFallback(cfg),
		}, nil
	}

	// Empty knowledge base: not an escalation cause, per spec §4.3.
	if len(result.Chunks) == 0 {
		return &TurnOutput{
			IntentType:   domain.IntentConversational,
			Response: conversationalFallback(cfg),
		}, nil
	}

	threshold := cfg.EscalationThreshold
	if threshold <= 0 {
		threshold = domain.DefaultTenantConfig().EscalationThreshold
	}
	maxTurns := cfg.MaxTurnsBeforeEscalation
	if maxTurns <= 0 {
		maxTurns = domain.DefaultTenantConfig().MaxTurnsBeforeEscalation
	}

	shouldEscalate, reason := escalationDecision(result.Confidence, threshold, turnCount, maxTurns)
	sourceChunks := toSourceChunks(result.Chunks)

	if shouldEscalate {
		if t.escalation != nil {
			if err := t.escalation.Escalate(ctx, sessionID, tenantID, reason, message, cfg.EscalationWebhookURL, cfg.ExternalUserID); err != nil {
				slog.Error("agent.handleDomainQuery: escalate failed", "session_id", sessionID, "error", err)
			}
		}
		confidence := result.Confidence
		return &TurnOutput{
			IntentType:         domain.IntentDomainQuery,
			Response:           escalationCannedResponse,
			Confidence:         &confidence,
			SourceChunks:       sourceChunks,
			EscalationRequired: true,
			EscalationReason:   reason,
		}, nil
	}

	answerPrompt := buildGroundedAnswerPrompt(result.Chunks, history, message)
	systemPrompt := BuildSystemPrompt(cfg)
	answer, err := t.llm.GenerateContent(ctx, systemPrompt, answerPrompt, generationTemperature, generationMaxTokens)
	if err != nil {
		slog.Warn("agent.handleDomainQuery: grounded generation failed", "session_id", sessionID, "error", err)
		answer = escalationCannedResponse
	}

	confidence := result.Confidence
	return &TurnOutput{
		IntentType:   domain.IntentDomainQuery,
		Response:     strings.TrimSpace(answer),
		Confidence:   &confidence,
		SourceChunks: sourceChunks,
	}, nil
}

// escalationDecision implements spec §4.2 Stage F. low_retrieval_confidence
// takes precedence over max_turns_exceeded when both hold.
func escalationDecision(confidence, threshold float64, turnCount, maxTurns int) (bool, string) {
	lowConfidence := confidence < threshold
	overLong := turnCount >= maxTurns
	switch {
	case lowConfidence:
		return true, reasonLowConfidence
	case overLong:
		return true, reasonMaxTurns
	default:
		return false, ""
	}
}

func toSourceChunks(chunks []retrieval.RankedChunk) []domain.SourceChunk {
	out := make([]domain.SourceChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, domain.SourceChunk{
			ChunkID:  c.Payload.ChunkID,
			Document: c.Payload.Filename,
			Section:  c.Payload.SectionHeading,
		})
	}
	return out
}

// buildGroundedAnswerPrompt composes the context block of retrieved chunks
// in rank order, the chat history, and the new user message (spec §4.3).
func buildGroundedAnswerPrompt(chunks []retrieval.RankedChunk, history []Turn, message string) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("[%s — %s]\n%s", c.Payload.Filename, c.Payload.SectionHeading, c.Payload.ChunkText))
	}
	ctxBlock := strings.Join(blocks, "\n\n---\n\n")

	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(ctxBlock)
	sb.WriteString("\n\nChat History:\n")
	sb.WriteString(Render(history))
	sb.WriteString("User: ")
	sb.WriteString(message)
	sb.WriteString("\nAssistant:")
	return sb.String()
}

// persistAndRemember persists the user and assistant messages and updates
// the windowed memory. This is the one step in HandleTurn allowed to fail
// the whole call: a turn the caller believes succeeded but was never
// recorded would silently lose the exchange.
func (t *Turns) persistAndRemember(ctx context.Context, sessionID, tenantID, userMessage string, out *TurnOutput) error {
	now := time.Now().UTC()
	intent := out.IntentType
	userMsg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TenantID:  tenantID,
		Role:      domain.RoleUser,
		Content:   userMessage,
		CreatedAt: now,
	}
	if err := t.messages.Insert(ctx, userMsg); err != nil {
		return fmt.Errorf("agent.HandleTurn: persist user message: %w", err)
	}

	assistantMsg := &domain.Message{
		ID:              out.MessageID,
		SessionID:       sessionID,
		TenantID:        tenantID,
		Role:            domain.RoleAssistant,
		Content:         out.Response,
		IntentType:      &intent,
		SourceChunks:    out.SourceChunks,
		ConfidenceScore: out.Confidence,
		EscalationFlag:  out.EscalationRequired,
		InputTokens:     out.InputTokens,
		OutputTokens:    out.OutputTokens,
		LatencyMs:       out.LatencyMs,
		CreatedAt:       now,
	}
	if err := t.messages.Insert(ctx, assistantMsg); err != nil {
		return fmt.Errorf("agent.HandleTurn: persist assistant message: %w", err)
	}

	if out.EscalationRequired {
		if err := t.memory.Clear(ctx, sessionID); err != nil {
			slog.Warn("agent.HandleTurn: clear memory after escalation failed", "session_id", sessionID, "error", err)
		}
		return nil
	}

	if err := t.memory.Append(ctx, sessionID, Turn{UserMessage: userMessage, AssistantMessage: out.Response}); err != nil {
		slog.Warn("agent.HandleTurn: append memory failed", "session_id", sessionID, "error", err)
	}
	return nil
}
