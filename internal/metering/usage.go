// Package metering accumulates per-session token and message counters in
// the key-value store and flushes them durably at session termination
// (spec §4.5).
package metering

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// EventType enumerates the terminal reasons a session's usage is flushed.
type EventType = domain.BillingEventType

const (
	EventResolved  = domain.BillingResolved
	EventEscalated = domain.BillingEscalated
	EventTimeout   = domain.BillingTimeout
)

// Usage tracks per-session counters in the key-value store and flushes them
// to the durable BillingStore at session close.
type Usage struct {
	kv      ports.KeyValueStore
	billing ports.BillingStore
	idleTTL time.Duration
}

// New creates a Usage meter. idleTTL is the tenant's idle-session timeout;
// counter keys carry 2x that TTL so a slow-to-close session's counters
// outlive the session itself (spec §4.5).
func New(kv ports.KeyValueStore, billing ports.BillingStore, idleTTL time.Duration) *Usage {
	return &Usage{kv: kv, billing: billing, idleTTL: idleTTL}
}

func inputTokensKey(sessionID string) string   { return "billing:" + sessionID + ":input_tokens" }
func outputTokensKey(sessionID string) string  { return "billing:" + sessionID + ":output_tokens" }
func messageCountKey(sessionID string) string  { return "billing:" + sessionID + ":message_count" }

func (u *Usage) counterTTL() time.Duration { return 2 * u.idleTTL }

// RecordMessage atomically increments a session's running counters and
// refreshes their TTLs. Safe to call concurrently for the same session.
func (u *Usage) RecordMessage(ctx context.Context, sessionID, tenantID string, inputTokens, outputTokens int64) error {
	keys := []string{inputTokensKey(sessionID), outputTokensKey(sessionID), messageCountKey(sessionID)}
	deltas := []int64{inputTokens, outputTokens, 1}

	for i, key := range keys {
		if _, err := u.kv.IncrBy(ctx, key, deltas[i]); err != nil {
			return fmt.Errorf("metering.RecordMessage: incr %s: %w", key, err)
		}
	}
	ttl := u.counterTTL()
	for _, key := range keys {
		if err := u.kv.Expire(ctx, key, ttl); err != nil {
			return fmt.Errorf("metering.RecordMessage: expire %s: %w", key, err)
		}
	}
	return nil
}

// CloseSession reads the session's running counters (missing keys count as
// zero, never an error), inserts one durable BillingEvent with the totals,
// and deletes the counter keys. Safe to call even if RecordMessage was
// never invoked for this session.
func (u *Usage) CloseSession(ctx context.Context, sessionID, tenantID string, eventType EventType) error {
	inputTokens, err := u.readCounter(ctx, inputTokensKey(sessionID))
	if err != nil {
		return fmt.Errorf("metering.CloseSession: %w", err)
	}
	outputTokens, err := u.readCounter(ctx, outputTokensKey(sessionID))
	if err != nil {
		return fmt.Errorf("metering.CloseSession: %w", err)
	}
	messageCount, err := u.readCounter(ctx, messageCountKey(sessionID))
	if err != nil {
		return fmt.Errorf("metering.CloseSession: %w", err)
	}

	event := &domain.BillingEvent{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		SessionID:         sessionID,
		EventType:         eventType,
		TotalInputTokens:  inputTokens,
		TotalOutputTokens: outputTokens,
		TotalMessages:     messageCount,
		BilledAt:          time.Now().UTC(),
	}
	if err := u.billing.Insert(ctx, event); err != nil {
		return fmt.Errorf("metering.CloseSession: insert billing event: %w", err)
	}

	if err := u.kv.Delete(ctx, inputTokensKey(sessionID), outputTokensKey(sessionID), messageCountKey(sessionID)); err != nil {
		slog.Warn("metering.CloseSession: delete counters failed", "session_id", sessionID, "error", err)
	}
	return nil
}

// readCounter reads the current value of a counter key without mutating
// it, using a zero-delta IncrBy — the store's own atomic primitive, with no
// separate read-counter operation in the KeyValueStore contract. A missing
// key is absent 0, not an error.
func (u *Usage) readCounter(ctx context.Context, key string) (int64, error) {
	v, err := u.kv.IncrBy(ctx, key, 0)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}
