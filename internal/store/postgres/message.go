package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// MessageStore implements ports.MessageStore with pgx.
type MessageStore struct {
	pool *pgxpool.Pool
}

// NewMessageStore creates a MessageStore.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

var _ ports.MessageStore = (*MessageStore)(nil)

func (r *MessageStore) Insert(ctx context.Context, msg *domain.Message) error {
	sourceChunksJSON, err := json.Marshal(msg.SourceChunks)
	if err != nil {
		return fmt.Errorf("postgres.Message.Insert: marshal source chunks: %w", err)
	}

	var intentType *string
	if msg.IntentType != nil {
		s := string(*msg.IntentType)
		intentType = &s
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO messages (
			id, session_id, tenant_id, role, content, intent_type, source_chunks,
			confidence_score, escalation_flag, input_tokens, output_tokens, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		msg.ID, msg.SessionID, msg.TenantID, string(msg.Role), msg.Content, intentType, sourceChunksJSON,
		msg.ConfidenceScore, msg.EscalationFlag, msg.InputTokens, msg.OutputTokens, msg.LatencyMs, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres.Message.Insert: %w", err)
	}
	return nil
}

func (r *MessageStore) ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, tenant_id, role, content, intent_type, source_chunks,
			confidence_score, escalation_flag, input_tokens, output_tokens, latency_ms, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.Message.ListBySession: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		var role string
		var intentType *string
		var sourceChunksJSON []byte

		if err := rows.Scan(&m.ID, &m.SessionID, &m.TenantID, &role, &m.Content, &intentType, &sourceChunksJSON,
			&m.ConfidenceScore, &m.EscalationFlag, &m.InputTokens, &m.OutputTokens, &m.LatencyMs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres.Message.ListBySession: scan: %w", err)
		}
		m.Role = domain.MessageRole(role)
		if intentType != nil {
			it := domain.IntentType(*intentType)
			m.IntentType = &it
		}
		if len(sourceChunksJSON) > 0 {
			if err := json.Unmarshal(sourceChunksJSON, &m.SourceChunks); err != nil {
				return nil, fmt.Errorf("postgres.Message.ListBySession: unmarshal source chunks: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MessageStore) CountUserMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE session_id = $1 AND role = $2`,
		sessionID, string(domain.RoleUser),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres.Message.CountUserMessages: %w", err)
	}
	return count, nil
}
