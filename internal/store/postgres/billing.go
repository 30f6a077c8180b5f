package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// BillingStore implements ports.BillingStore with pgx.
type BillingStore struct {
	pool *pgxpool.Pool
}

// NewBillingStore creates a BillingStore.
func NewBillingStore(pool *pgxpool.Pool) *BillingStore {
	return &BillingStore{pool: pool}
}

var _ ports.BillingStore = (*BillingStore)(nil)

func (r *BillingStore) Insert(ctx context.Context, event *domain.BillingEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO billing_events (
			id, tenant_id, session_id, event_type, total_input_tokens, total_output_tokens, total_messages, billed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.TenantID, event.SessionID, string(event.EventType),
		event.TotalInputTokens, event.TotalOutputTokens, event.TotalMessages, event.BilledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres.Billing.Insert: %w", err)
	}
	return nil
}
