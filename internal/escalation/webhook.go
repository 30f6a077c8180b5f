package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/observability"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// webhookRetryDelays is the backoff schedule between escalation webhook
// attempts (spec §4.4): 1s, 2s, 4s, for up to len(webhookRetryDelays)+1
// total attempts — the same shape as internal/llm's withRetry schedule,
// scaled to an external webhook's slower expected recovery time.
var webhookRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

const webhookRequestTimeout = 10 * time.Second

// TranscriptMessage is one message in the escalation payload's transcript.
type TranscriptMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// EscalationPayload is the JSON body delivered to the tenant's escalation
// webhook.
type EscalationPayload struct {
	Event            string              `json:"event"`
	SessionID        string              `json:"session_id"`
	TenantID         string              `json:"tenant_id"`
	ExternalUserID   string              `json:"external_user_id,omitempty"`
	EscalationReason string              `json:"escalation_reason"`
	Transcript       []TranscriptMessage `json:"transcript"`
	LastUserMessage  string              `json:"last_user_message"`
	EscalatedAt      string              `json:"escalated_at"`
}

// WebhookDispatcher delivers escalation payloads to tenant webhooks in the
// background, with retry, and records a compensating billing event when
// every attempt fails.
type WebhookDispatcher struct {
	billing ports.BillingStore
	client  *http.Client
	metrics *observability.Metrics
}

// NewWebhookDispatcher creates a WebhookDispatcher. metrics may be nil.
func NewWebhookDispatcher(billing ports.BillingStore, metrics *observability.Metrics) *WebhookDispatcher {
	return &WebhookDispatcher{
		billing: billing,
		client:  &http.Client{Timeout: webhookRequestTimeout},
		metrics: metrics,
	}
}

// Dispatch fires the webhook in a detached goroutine and returns
// immediately. It takes no caller context: every HTTP attempt runs under
// its own context derived from context.Background(), so delivery continues
// even if the request that triggered the escalation has already returned.
func (d *WebhookDispatcher) Dispatch(tenantID, sessionID, webhookURL string, payload EscalationPayload) {
	go func() {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("escalation.WebhookDispatcher: panic in background delivery", "session_id", sessionID, "panic", p)
			}
		}()
		d.deliver(tenantID, sessionID, webhookURL, payload)
	}()
}

func (d *WebhookDispatcher) deliver(tenantID, sessionID, webhookURL string, payload EscalationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("escalation.WebhookDispatcher: marshal payload failed", "session_id", sessionID, "error", err)
		return
	}

	if d.attempt(webhookURL, body, sessionID) {
		return
	}

	for _, delay := range webhookRetryDelays {
		time.Sleep(delay)
		if d.attempt(webhookURL, body, sessionID) {
			return
		}
	}

	slog.Error("escalation.WebhookDispatcher: all delivery attempts exhausted", "session_id", sessionID, "tenant_id", tenantID, "attempts", len(webhookRetryDelays)+1)
	d.metrics.IncrementEscalationExhausted()
	d.recordFailure(tenantID, sessionID)
}

// attempt fires one HTTP POST and reports whether it succeeded (any 2xx).
func (d *WebhookDispatcher) attempt(webhookURL string, body []byte, sessionID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), webhookRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		slog.Warn("escalation.WebhookDispatcher: build request failed", "session_id", sessionID, "error", err)
		d.metrics.IncrementEscalationAttempt("build_error")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Warn("escalation.WebhookDispatcher: delivery attempt failed", "session_id", sessionID, "error", err)
		d.metrics.IncrementEscalationAttempt("transport_error")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.metrics.IncrementEscalationAttempt("success")
		return true
	}
	slog.Warn("escalation.WebhookDispatcher: non-2xx response", "session_id", sessionID, "status", resp.StatusCode)
	d.metrics.IncrementEscalationAttempt("non_2xx")
	return false
}

// recordFailure inserts a BillingEvent marking the webhook as undelivered,
// using a context independent of the original request's — that transaction
// may have long since closed by the time every retry is exhausted.
func (d *WebhookDispatcher) recordFailure(tenantID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := &domain.BillingEvent{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		SessionID: sessionID,
		EventType: domain.BillingEscalationWebhookFail,
		BilledAt:  time.Now().UTC(),
	}
	if err := d.billing.Insert(ctx, event); err != nil {
		slog.Error("escalation.WebhookDispatcher: failed to record webhook-failure billing event", "session_id", sessionID, "error", err)
	}
}
