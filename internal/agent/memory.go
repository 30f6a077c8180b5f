package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// windowSize is the number of most recent turns kept in the session's
// rolling memory window (spec §5.1).
const windowSize = 10

// Turn is one user/assistant exchange kept in windowed memory.
type Turn struct {
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}

// Memory is the windowed, key-value-store-backed short-term memory for a
// session's last windowSize turns. It lives entirely in the key-value store
// — not the relational store — so it naturally expires with session idle
// time and never needs its own cleanup job.
type Memory struct {
	kv      ports.KeyValueStore
	idleTTL time.Duration
}

// NewMemory creates a Memory. idleTTL should match the tenant's idle-session
// timeout: memory has no reason to outlive the session it supports.
func NewMemory(kv ports.KeyValueStore, idleTTL time.Duration) *Memory {
	return &Memory{kv: kv, idleTTL: idleTTL}
}

func memoryKey(sessionID string) string {
	return "session_memory:" + sessionID
}

// Load returns the session's turn window, oldest first. A missing or
// corrupt entry is treated as an empty window, not an error — memory is an
// optimization, not a source of truth (spec §5.1; the durable record lives
// in MessageStore).
func (m *Memory) Load(ctx context.Context, sessionID string) []Turn {
	raw, ok, err := m.kv.Get(ctx, memoryKey(sessionID))
	if err != nil || !ok {
		return nil
	}
	var turns []Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil
	}
	return turns
}

// Append adds one turn to the window, trimming to the most recent
// windowSize turns, and refreshes the TTL.
func (m *Memory) Append(ctx context.Context, sessionID string, turn Turn) error {
	turns := m.Load(ctx, sessionID)
	turns = append(turns, turn)
	if len(turns) > windowSize {
		turns = turns[len(turns)-windowSize:]
	}

	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("agent.Memory.Append: marshal: %w", err)
	}
	if err := m.kv.Set(ctx, memoryKey(sessionID), raw, m.idleTTL); err != nil {
		return fmt.Errorf("agent.Memory.Append: %w", err)
	}
	return nil
}

// Clear removes the session's memory window, used when a session closes
// (resolved, escalated, or timed out).
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	return m.kv.Delete(ctx, memoryKey(sessionID))
}

// Render formats the turn window as transcript lines for prompt assembly.
func Render(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var out string
	for _, t := range turns {
		out += fmt.Sprintf("%s: %s\n%s: %s\n", domain.RoleUser, t.UserMessage, domain.RoleAssistant, t.AssistantMessage)
	}
	return out
}
