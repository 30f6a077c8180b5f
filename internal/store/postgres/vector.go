package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// VectorIndex implements ports.VectorIndex on pgvector. Each tenant's
// collection is its own physical table (tenant_{tenantId}_chunks) so that a
// tenant's corpus can be dropped in one statement and so the cosine index
// stays small and tenant-local (spec §5).
type VectorIndex struct {
	pool *pgxpool.Pool
}

// NewVectorIndex creates a VectorIndex.
func NewVectorIndex(pool *pgxpool.Pool) *VectorIndex {
	return &VectorIndex{pool: pool}
}

var _ ports.VectorIndex = (*VectorIndex)(nil)

// safeTenantID matches the tenant ID charset accepted for use in a dynamic
// table identifier. Tenant IDs are server-generated UUIDs or slugs, never
// raw user input, but the check stays in place as a belt-and-braces guard
// against building a SQL identifier from an unexpected value.
var safeTenantID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func tableName(tenantID string) (string, error) {
	if !safeTenantID.MatchString(tenantID) {
		return "", fmt.Errorf("postgres.VectorIndex: invalid tenant id %q", tenantID)
	}
	sanitized := regexp.MustCompile(`-`).ReplaceAllString(tenantID, "_")
	return fmt.Sprintf("tenant_%s_chunks", sanitized), nil
}

func (v *VectorIndex) EnsureCollection(ctx context.Context, tenantID string, dimension int) error {
	table, err := tableName(tenantID)
	if err != nil {
		return err
	}

	_, err = v.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			document_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			document_version INT NOT NULL,
			is_latest_version BOOLEAN NOT NULL,
			section_heading TEXT,
			element_type TEXT,
			chunk_text TEXT NOT NULL,
			char_count INT NOT NULL,
			token_count INT NOT NULL,
			summary TEXT,
			hypothetical_questions TEXT[],
			vector_type TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL
		)`, table, dimension))
	if err != nil {
		return fmt.Errorf("postgres.VectorIndex.EnsureCollection: create table: %w", err)
	}

	_, err = v.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
		USING hnsw (embedding vector_cosine_ops)`, table, table))
	if err != nil {
		return fmt.Errorf("postgres.VectorIndex.EnsureCollection: create index: %w", err)
	}

	_, err = v.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)`, table, table))
	if err != nil {
		return fmt.Errorf("postgres.VectorIndex.EnsureCollection: create document index: %w", err)
	}

	return nil
}

func (v *VectorIndex) Upsert(ctx context.Context, tenantID string, points []ports.Point) error {
	if len(points) == 0 {
		return nil
	}
	table, err := tableName(tenantID)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		payload := p.Payload
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (
				id, document_id, filename, document_version, is_latest_version, section_heading,
				element_type, chunk_text, char_count, token_count, summary, hypothetical_questions,
				vector_type, embedding, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				filename = EXCLUDED.filename,
				document_version = EXCLUDED.document_version,
				is_latest_version = EXCLUDED.is_latest_version,
				section_heading = EXCLUDED.section_heading,
				element_type = EXCLUDED.element_type,
				chunk_text = EXCLUDED.chunk_text,
				char_count = EXCLUDED.char_count,
				token_count = EXCLUDED.token_count,
				summary = EXCLUDED.summary,
				hypothetical_questions = EXCLUDED.hypothetical_questions,
				vector_type = EXCLUDED.vector_type,
				embedding = EXCLUDED.embedding,
				ingested_at = EXCLUDED.ingested_at`, table),
			p.ID, payload.DocumentID, payload.Filename, payload.DocumentVersion, payload.IsLatestVersion,
			payload.SectionHeading, payload.ElementType, payload.ChunkText, payload.CharCount, payload.TokenCount,
			payload.Summary, payload.HypotheticalQuestions, payload.VectorType,
			pgvector.NewVector(p.Vector), time.Unix(payload.IngestedAt, 0).UTC(),
		)
	}

	br := v.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < len(points); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres.VectorIndex.Upsert: point %d: %w", i, err)
		}
	}
	return nil
}

func (v *VectorIndex) Search(ctx context.Context, tenantID string, query []float32, vectorType string, limit int) ([]ports.ScoredPoint, error) {
	table, err := tableName(tenantID)
	if err != nil {
		return nil, err
	}
	embedding := pgvector.NewVector(query)

	rows, err := v.pool.Query(ctx, fmt.Sprintf(`
		SELECT document_id, filename, document_version, is_latest_version, section_heading,
			element_type, chunk_text, char_count, token_count, summary, hypothetical_questions,
			vector_type, ingested_at, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE is_latest_version = true AND vector_type = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, table), embedding, vectorType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.VectorIndex.Search: %w", err)
	}
	defer rows.Close()

	return scanScoredPoints(rows)
}

func (v *VectorIndex) ScanRaw(ctx context.Context, tenantID string, pageSize int, fn func(points []ports.ScoredPoint) error) error {
	table, err := tableName(tenantID)
	if err != nil {
		return err
	}
	if pageSize <= 0 {
		pageSize = 500
	}

	var after string
	for {
		rows, err := v.pool.Query(ctx, fmt.Sprintf(`
			SELECT document_id, filename, document_version, is_latest_version, section_heading,
				element_type, chunk_text, char_count, token_count, summary, hypothetical_questions,
				vector_type, ingested_at, id
			FROM %s
			WHERE is_latest_version = true AND vector_type = 'raw' AND id::text > $1
			ORDER BY id::text
			LIMIT $2`, table), after, pageSize,
		)
		if err != nil {
			return fmt.Errorf("postgres.VectorIndex.ScanRaw: %w", err)
		}

		var page []ports.ScoredPoint
		var lastID string
		for rows.Next() {
			p := ports.ScoredPoint{}
			var ingestedAt time.Time
			var vectorType string
			var id string
			if err := rows.Scan(&p.Payload.DocumentID, &p.Payload.Filename, &p.Payload.DocumentVersion,
				&p.Payload.IsLatestVersion, &p.Payload.SectionHeading, &p.Payload.ElementType, &p.Payload.ChunkText,
				&p.Payload.CharCount, &p.Payload.TokenCount, &p.Payload.Summary, &p.Payload.HypotheticalQuestions,
				&vectorType, &ingestedAt, &id); err != nil {
				rows.Close()
				return fmt.Errorf("postgres.VectorIndex.ScanRaw: scan: %w", err)
			}
			p.Payload.VectorType = vectorType
			p.Payload.ChunkID = id
			p.Payload.IngestedAt = ingestedAt.Unix()
			page = append(page, p)
			lastID = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("postgres.VectorIndex.ScanRaw: %w", err)
		}

		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		after = lastID
	}
}

func (v *VectorIndex) Count(ctx context.Context, tenantID string) (int, error) {
	table, err := tableName(tenantID)
	if err != nil {
		return 0, err
	}
	var count int
	err = v.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE is_latest_version = true`, table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres.VectorIndex.Count: %w", err)
	}
	return count, nil
}

func (v *VectorIndex) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	table, err := tableName(tenantID)
	if err != nil {
		return err
	}
	_, err = v.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, table), documentID)
	if err != nil {
		return fmt.Errorf("postgres.VectorIndex.DeleteDocument: %w", err)
	}
	return nil
}

func scanScoredPoints(rows pgx.Rows) ([]ports.ScoredPoint, error) {
	var out []ports.ScoredPoint
	for rows.Next() {
		p := ports.ScoredPoint{}
		var ingestedAt time.Time
		var vectorType string
		if err := rows.Scan(&p.Payload.DocumentID, &p.Payload.Filename, &p.Payload.DocumentVersion,
			&p.Payload.IsLatestVersion, &p.Payload.SectionHeading, &p.Payload.ElementType, &p.Payload.ChunkText,
			&p.Payload.CharCount, &p.Payload.TokenCount, &p.Payload.Summary, &p.Payload.HypotheticalQuestions,
			&vectorType, &ingestedAt, &p.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan scored point: %w", err)
		}
		p.Payload.VectorType = vectorType
		p.Payload.IngestedAt = ingestedAt.Unix()
		out = append(out, p)
	}
	return out, rows.Err()
}
