package ports

import (
	"context"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
)

// TenantStore reads tenant rows. Tenants are created externally and are
// read-only on the hot path.
type TenantStore interface {
	GetByID(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// SessionStore persists session lifecycle rows.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateStatus(ctx context.Context, sessionID string, status domain.SessionStatus, escalationReason string) error
	// ListActiveOlderThan returns active sessions started before cutoff, for
	// the idle-session sweeper.
	ListActiveOlderThan(ctx context.Context, cutoffUnixSeconds int64) ([]*domain.Session, error)
}

// MessageStore persists immutable chat messages.
type MessageStore interface {
	Insert(ctx context.Context, msg *domain.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error)
	CountUserMessages(ctx context.Context, sessionID string) (int, error)
}

// BillingStore persists durable metering records.
type BillingStore interface {
	Insert(ctx context.Context, event *domain.BillingEvent) error
}

// DocumentStore persists the knowledge-document status machine.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.KnowledgeDocument) error
	GetByID(ctx context.Context, documentID string) (*domain.KnowledgeDocument, error)
	UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errorMessage *string) error
	UpdateChunkCount(ctx context.Context, documentID string, count int) error
	SoftDelete(ctx context.Context, documentID string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.KnowledgeDocument, error)
}
