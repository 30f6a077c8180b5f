package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// DocumentStore implements ports.DocumentStore with pgx.
type DocumentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (r *DocumentStore) Create(ctx context.Context, doc *domain.KnowledgeDocument) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO knowledge_documents (
			id, tenant_id, filename, file_type, version, is_active, ingested_at,
			chunk_count, status, error_message, checksum
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		doc.ID, doc.TenantID, doc.Filename, string(doc.FileType), doc.Version, doc.IsActive, doc.IngestedAt,
		doc.ChunkCount, string(doc.Status), doc.ErrorMessage, doc.Checksum,
	)
	if err != nil {
		return fmt.Errorf("postgres.Document.Create: %w", err)
	}
	return nil
}

func (r *DocumentStore) GetByID(ctx context.Context, documentID string) (*domain.KnowledgeDocument, error) {
	d := &domain.KnowledgeDocument{}
	var fileType, status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, filename, file_type, version, is_active, ingested_at,
			chunk_count, status, error_message, checksum
		FROM knowledge_documents WHERE id = $1`, documentID,
	).Scan(&d.ID, &d.TenantID, &d.Filename, &fileType, &d.Version, &d.IsActive, &d.IngestedAt,
		&d.ChunkCount, &status, &d.ErrorMessage, &d.Checksum)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres.Document.GetByID: %w", err)
	}
	d.FileType = domain.FileType(fileType)
	d.Status = domain.DocumentStatus(status)
	return d, nil
}

func (r *DocumentStore) UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errorMessage *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE knowledge_documents SET status = $1, error_message = $2 WHERE id = $3`,
		string(status), errorMessage, documentID,
	)
	if err != nil {
		return fmt.Errorf("postgres.Document.UpdateStatus: %w", err)
	}
	return nil
}

func (r *DocumentStore) UpdateChunkCount(ctx context.Context, documentID string, count int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE knowledge_documents SET chunk_count = $1 WHERE id = $2`, count, documentID,
	)
	if err != nil {
		return fmt.Errorf("postgres.Document.UpdateChunkCount: %w", err)
	}
	return nil
}

func (r *DocumentStore) SoftDelete(ctx context.Context, documentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE knowledge_documents SET is_active = false WHERE id = $1`, documentID,
	)
	if err != nil {
		return fmt.Errorf("postgres.Document.SoftDelete: %w", err)
	}
	return nil
}

func (r *DocumentStore) ListByTenant(ctx context.Context, tenantID string) ([]*domain.KnowledgeDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, filename, file_type, version, is_active, ingested_at,
			chunk_count, status, error_message, checksum
		FROM knowledge_documents WHERE tenant_id = $1 ORDER BY ingested_at DESC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.Document.ListByTenant: %w", err)
	}
	defer rows.Close()

	var out []*domain.KnowledgeDocument
	for rows.Next() {
		d := &domain.KnowledgeDocument{}
		var fileType, status string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Filename, &fileType, &d.Version, &d.IsActive, &d.IngestedAt,
			&d.ChunkCount, &status, &d.ErrorMessage, &d.Checksum); err != nil {
			return nil, fmt.Errorf("postgres.Document.ListByTenant: scan: %w", err)
		}
		d.FileType = domain.FileType(fileType)
		d.Status = domain.DocumentStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}
