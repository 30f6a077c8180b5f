// Package escalation marks a session escalated and hands it off to a human
// operator via the tenant's webhook (spec §4.4).
package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// MemoryStore is the narrow slice of agent.Memory's contract Escalate
// needs: clear a session's windowed chat memory. Any type with this method
// satisfies it, so this package never imports internal/agent.
type MemoryStore interface {
	Clear(ctx context.Context, sessionID string) error
}

// Escalation runs the sequential escalate flow: load transcript, update
// session status, enqueue the webhook, clear memory.
type Escalation struct {
	sessions   ports.SessionStore
	messages   ports.MessageStore
	memory     MemoryStore
	dispatcher *WebhookDispatcher
}

// New creates an Escalation.
func New(sessions ports.SessionStore, messages ports.MessageStore, memory MemoryStore, dispatcher *WebhookDispatcher) *Escalation {
	return &Escalation{
		sessions:   sessions,
		messages:   messages,
		memory:     memory,
		dispatcher: dispatcher,
	}
}

// Escalate runs the four steps of spec §4.4 in order. Step 3 (webhook
// delivery) is fire-and-forget: Escalate returns once it has been enqueued,
// not once it has been delivered.
func (e *Escalation) Escalate(ctx context.Context, sessionID, tenantID, reason, lastUserMessage, webhookURL, externalUserID string) error {
	transcript, err := e.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("escalation.Escalate: load transcript: %w", err)
	}

	if err := e.sessions.UpdateStatus(ctx, sessionID, domain.SessionEscalated, reason); err != nil {
		return fmt.Errorf("escalation.Escalate: update session: %w", err)
	}

	if webhookURL != "" {
		payload := EscalationPayload{
			Event:            "escalation",
			SessionID:        sessionID,
			TenantID:         tenantID,
			ExternalUserID:   externalUserID,
			EscalationReason: reason,
			Transcript:       toTranscript(transcript),
			LastUserMessage:  lastUserMessage,
			EscalatedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		e.dispatcher.Dispatch(tenantID, sessionID, webhookURL, payload)
	}

	if err := e.memory.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("escalation.Escalate: clear memory: %w", err)
	}

	return nil
}

func toTranscript(messages []*domain.Message) []TranscriptMessage {
	out := make([]TranscriptMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, TranscriptMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
