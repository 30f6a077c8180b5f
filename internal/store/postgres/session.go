package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// SessionStore implements ports.SessionStore with pgx.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

var _ ports.SessionStore = (*SessionStore)(nil)

func (r *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	now := time.Now().UTC()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, tenant_id, external_user_id, status, escalation_reason, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.TenantID, session.ExternalUserID, string(session.Status),
		session.EscalationReason, session.StartedAt, session.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres.Session.Create: %w", err)
	}
	return nil
}

func (r *SessionStore) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	s := &domain.Session{}
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, external_user_id, status, escalation_reason, started_at, ended_at
		FROM sessions WHERE id = $1`, sessionID,
	).Scan(&s.ID, &s.TenantID, &s.ExternalUserID, &status, &s.EscalationReason, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres.Session.GetByID: %w", err)
	}
	s.Status = domain.SessionStatus(status)
	return s, nil
}

func (r *SessionStore) UpdateStatus(ctx context.Context, sessionID string, status domain.SessionStatus, escalationReason string) error {
	var endedAt *time.Time
	if status != domain.SessionActive {
		now := time.Now().UTC()
		endedAt = &now
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET status = $1, escalation_reason = $2, ended_at = $3 WHERE id = $4`,
		string(status), escalationReason, endedAt, sessionID,
	)
	if err != nil {
		return fmt.Errorf("postgres.Session.UpdateStatus: %w", err)
	}
	return nil
}

func (r *SessionStore) ListActiveOlderThan(ctx context.Context, cutoffUnixSeconds int64) ([]*domain.Session, error) {
	cutoff := time.Unix(cutoffUnixSeconds, 0).UTC()
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, external_user_id, status, escalation_reason, started_at, ended_at
		FROM sessions WHERE status = $1 AND started_at < $2`,
		string(domain.SessionActive), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.Session.ListActiveOlderThan: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s := &domain.Session{}
		var status string
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ExternalUserID, &status, &s.EscalationReason, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("postgres.Session.ListActiveOlderThan: scan: %w", err)
		}
		s.Status = domain.SessionStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}
